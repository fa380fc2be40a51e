package config

import (
	"fmt"
	"sort"
	"strings"
)

// Chord представляет сочетание клавиш: набор модификаторов плюс одна
// основная клавиша. Два аккорда равны, если равны их нормализованные
// представления, порядок модификаторов значения не имеет.
type Chord struct {
	Modifiers []Modifier `json:"modifiers"`
	Key       Key        `json:"key"`
}

// порядок модификаторов в каноническом представлении
var modifierOrder = map[Modifier]int{
	ModCtrl:  0,
	ModShift: 1,
	ModAlt:   2,
	ModSuper: 3,
}

var validKeys = func() map[Key]bool {
	m := make(map[Key]bool)
	for _, k := range AvailableKeys() {
		m[k] = true
	}
	return m
}()

// Normalize возвращает копию аккорда с отсортированными модификаторами
// без дубликатов.
func (c Chord) Normalize() Chord {
	seen := make(map[Modifier]bool, len(c.Modifiers))
	mods := make([]Modifier, 0, len(c.Modifiers))
	for _, m := range c.Modifiers {
		if seen[m] {
			continue
		}
		seen[m] = true
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool {
		return modifierOrder[mods[i]] < modifierOrder[mods[j]]
	})
	return Chord{Modifiers: mods, Key: c.Key}
}

// Validate проверяет что аккорд состоит из известных модификаторов
// и ровно одной известной основной клавиши. Аккорд без модификаторов
// невалиден: глобальный хук на голую клавишу перехватывал бы её во всей
// системе.
func (c Chord) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("аккорд без основной клавиши")
	}
	if len(c.Modifiers) == 0 {
		return fmt.Errorf("аккорд без модификаторов")
	}
	if !validKeys[c.Key] {
		return fmt.Errorf("неизвестная клавиша %q", c.Key)
	}
	for _, m := range c.Modifiers {
		if _, ok := modifierOrder[m]; !ok {
			return fmt.Errorf("неизвестный модификатор %q", m)
		}
	}
	return nil
}

// IsZero возвращает true для пустого аккорда (пресет без горячей клавиши).
func (c Chord) IsZero() bool {
	return c.Key == "" && len(c.Modifiers) == 0
}

// ID возвращает каноническую строку аккорда, пригодную как ключ индекса.
func (c Chord) ID() string {
	return c.Normalize().String()
}

// Equal сравнивает аккорды по нормализованным представлениям.
func (c Chord) Equal(other Chord) bool {
	return c.ID() == other.ID()
}

// String возвращает строковое представление аккорда, например "ctrl+shift+r".
func (c Chord) String() string {
	parts := make([]string, 0, len(c.Modifiers)+1)
	for _, m := range c.Modifiers {
		parts = append(parts, string(m))
	}
	parts = append(parts, string(c.Key))
	return strings.Join(parts, "+")
}
