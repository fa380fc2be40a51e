// Package hotkey предоставляет глобальные горячие клавиши.
package hotkey

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"
	"promptpilot/internal/config"
)

var (
	// ErrDuplicateChord - аккорд уже зарегистрирован за другим обработчиком.
	ErrDuplicateChord = errors.New("аккорд уже зарегистрирован")
	// ErrPermissionDenied - ОС отказала в установке глобального хука
	// (на macOS не выдано разрешение Accessibility).
	ErrPermissionDenied = errors.New("ОС отклонила установку глобального хука")
	// ErrRegisterFailed - ОС отклонила регистрацию комбинации. На
	// Linux/Windows обычно значит что комбинацию уже захватило другое
	// приложение.
	ErrRegisterFailed = errors.New("ОС отклонила регистрацию комбинации")
	// ErrInvalidChord - аккорд не прошёл валидацию.
	ErrInvalidChord = errors.New("невалидный аккорд")
)

// Callback вызывается по нажатию аккорда. Вызов идёт из горутины
// слушателя, не из потока ввода ОС, но обработчик всё равно не должен
// блокироваться надолго.
type Callback func(chord config.Chord)

// entry - одна зарегистрированная комбинация.
type entry struct {
	chord  config.Chord
	hk     *hotkey.Hotkey
	stopCh chan struct{}
}

// Listener регистрирует набор аккордов и доставляет события нажатий.
type Listener struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New создаёт слушатель горячих клавиш.
func New() *Listener {
	return &Listener{
		entries: make(map[string]*entry),
	}
}

// Register регистрирует аккорд и обработчик. Возвращает ErrDuplicateChord
// если аккорд уже занят: решение о переназначении остаётся за вызывающим.
func (l *Listener) Register(chord config.Chord, fn Callback) error {
	if err := chord.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChord, err)
	}
	chord = chord.Normalize()
	id := chord.ID()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateChord, id)
	}

	mods := make([]hotkey.Modifier, 0, len(chord.Modifiers))
	for _, m := range chord.Modifiers {
		if mod, ok := modifierMap[m]; ok {
			mods = append(mods, mod)
		}
	}
	key, ok := keyMap[chord.Key]
	if !ok {
		return fmt.Errorf("%w: клавиша %q не поддерживается", ErrInvalidChord, chord.Key)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		log.Printf("Ошибка регистрации %s: %v", id, err)
		return classifyRegisterError(err)
	}

	e := &entry{
		chord:  chord,
		hk:     hk,
		stopCh: make(chan struct{}),
	}
	l.entries[id] = e

	log.Printf("Горячая клавиша зарегистрирована: %s", id)
	go l.listen(e, fn)
	return nil
}

// listen слушает события одной комбинации до её отмены.
func (l *Listener) listen(e *entry, fn Callback) {
	// Защита от key repeat: пока основная клавиша удерживается, ОС
	// повторяет keydown. Срабатываем один раз на физическое нажатие
	// и ждём keyup перед следующим событием.
	down := false

	for {
		select {
		case <-e.stopCh:
			return
		case _, ok := <-e.hk.Keydown():
			if !ok {
				return
			}
			if down {
				continue
			}
			down = true
			if fn != nil {
				fn(e.chord)
			}
		case _, ok := <-e.hk.Keyup():
			if !ok {
				return
			}
			down = false
		}
	}
}

// Unregister отменяет регистрацию аккорда. Идемпотентна: отсутствие
// аккорда - no-op.
func (l *Listener) Unregister(chord config.Chord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unregisterLocked(chord.ID())
}

func (l *Listener) unregisterLocked(id string) {
	e, ok := l.entries[id]
	if !ok {
		return
	}
	delete(l.entries, id)
	close(e.stopCh)
	if err := e.hk.Unregister(); err != nil {
		log.Printf("Ошибка отмены регистрации %s: %v", id, err)
	}
}

// Close снимает все зарегистрированные аккорды.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.entries {
		l.unregisterLocked(id)
	}
}

// Registered возвращает true если аккорд зарегистрирован.
func (l *Listener) Registered(chord config.Chord) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[chord.ID()]
	return ok
}

// classifyRegisterError переводит отказ ОС в ошибку пакета. На macOS
// регистрация падает без разрешения Accessibility. На Linux/Windows тот
// же вызов падает когда комбинацию уже захватило другое приложение -
// это не повод показывать диалог о правах.
func classifyRegisterError(err error) error {
	if runtime.GOOS == "darwin" {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrRegisterFailed, err)
}

// RunOnMainThread запускает функцию в главном потоке (требование для macOS).
func RunOnMainThread(fn func()) {
	mainthread.Init(fn)
}

// modifierMap определён в platform-specific файлах:
// - modifiers_linux.go
// - modifiers_darwin.go
// - modifiers_windows.go

// keyMap маппинг config.Key -> hotkey.Key
var keyMap = map[config.Key]hotkey.Key{
	config.KeySpace:  hotkey.KeySpace,
	config.KeyReturn: hotkey.KeyReturn,
	config.KeyTab:    hotkey.KeyTab,
	config.KeyA:      hotkey.KeyA,
	config.KeyB:      hotkey.KeyB,
	config.KeyC:      hotkey.KeyC,
	config.KeyD:      hotkey.KeyD,
	config.KeyE:      hotkey.KeyE,
	config.KeyF:      hotkey.KeyF,
	config.KeyG:      hotkey.KeyG,
	config.KeyH:      hotkey.KeyH,
	config.KeyI:      hotkey.KeyI,
	config.KeyJ:      hotkey.KeyJ,
	config.KeyK:      hotkey.KeyK,
	config.KeyL:      hotkey.KeyL,
	config.KeyM:      hotkey.KeyM,
	config.KeyN:      hotkey.KeyN,
	config.KeyO:      hotkey.KeyO,
	config.KeyP:      hotkey.KeyP,
	config.KeyQ:      hotkey.KeyQ,
	config.KeyR:      hotkey.KeyR,
	config.KeyS:      hotkey.KeyS,
	config.KeyT:      hotkey.KeyT,
	config.KeyU:      hotkey.KeyU,
	config.KeyV:      hotkey.KeyV,
	config.KeyW:      hotkey.KeyW,
	config.KeyX:      hotkey.KeyX,
	config.KeyY:      hotkey.KeyY,
	config.KeyZ:      hotkey.KeyZ,
	config.KeyF1:     hotkey.KeyF1,
	config.KeyF2:     hotkey.KeyF2,
	config.KeyF3:     hotkey.KeyF3,
	config.KeyF4:     hotkey.KeyF4,
	config.KeyF5:     hotkey.KeyF5,
	config.KeyF6:     hotkey.KeyF6,
	config.KeyF7:     hotkey.KeyF7,
	config.KeyF8:     hotkey.KeyF8,
	config.KeyF9:     hotkey.KeyF9,
	config.KeyF10:    hotkey.KeyF10,
	config.KeyF11:    hotkey.KeyF11,
	config.KeyF12:    hotkey.KeyF12,
}
