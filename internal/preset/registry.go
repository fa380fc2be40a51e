package preset

import (
	"log"
	"sync"

	"promptpilot/internal/config"
)

// Registry - индекс аккорд -> пресет, перестраиваемый из хранилища при
// старте и по явному запросу на перезагрузку. Индекс заменяется целиком:
// читатели никогда не видят частично обновлённое состояние.
type Registry struct {
	mu      sync.RWMutex
	byChord map[string]Preset
	byName  map[string]Preset
	byID    map[string]Preset
	all     []Preset
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Load(nil)
	return r
}

// Load атомарно заменяет индекс новым набором пресетов. Пресеты с
// невалидным аккордом регистрируются только по имени и id. При конфликте
// аккордов выигрывает более поздний пресет в списке, конфликт логируется.
func (r *Registry) Load(presets []Preset) {
	byChord := make(map[string]Preset, len(presets))
	byName := make(map[string]Preset, len(presets))
	byID := make(map[string]Preset, len(presets))
	all := make([]Preset, 0, len(presets))

	for _, p := range presets {
		all = append(all, p)
		byID[p.ID] = p
		if prev, ok := byName[p.Name]; ok {
			log.Printf("Реестр: имя %q уже занято пресетом %s, заменяю на %s", p.Name, prev.ID, p.ID)
		}
		byName[p.Name] = p

		if p.Chord.IsZero() {
			continue
		}
		if err := p.Chord.Validate(); err != nil {
			log.Printf("Реестр: пресет %q пропущен в индексе аккордов: %v", p.Name, err)
			continue
		}
		id := p.Chord.ID()
		if prev, ok := byChord[id]; ok {
			// Политика "последний выигрывает": более поздняя запись
			// списка забирает аккорд себе
			log.Printf("Реестр: аккорд %s отвязан от %q в пользу %q", id, prev.Name, p.Name)
		}
		byChord[id] = p
	}

	r.mu.Lock()
	r.byChord = byChord
	r.byName = byName
	r.byID = byID
	r.all = all
	r.mu.Unlock()
}

// Resolve возвращает пресет по аккорду.
func (r *Registry) Resolve(chord config.Chord) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byChord[chord.ID()]
	return p, ok
}

// ResolveByName возвращает пресет по имени (меню трея, ручной запуск).
func (r *Registry) ResolveByName(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// ResolveByID возвращает пресет по идентификатору.
func (r *Registry) ResolveByID(id string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// All возвращает копию списка пресетов в порядке загрузки.
func (r *Registry) All() []Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Preset, len(r.all))
	copy(out, r.all)
	return out
}

// Chords возвращает список зарегистрированных аккордов.
func (r *Registry) Chords() []config.Chord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.Chord, 0, len(r.byChord))
	for _, p := range r.byChord {
		out = append(out, p.Chord)
	}
	return out
}
