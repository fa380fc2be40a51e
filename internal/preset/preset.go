// Package preset содержит модель пресета и индекс аккорд -> пресет.
package preset

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"promptpilot/internal/config"
)

// Placeholder - место подстановки входного текста в шаблон промпта.
const Placeholder = "{text}"

// Preset описывает привязку шаблона промпта к провайдеру, модели и
// необязательной горячей клавише. Пресеты создаются и изменяются только
// редактором, координатор выполнения работает с неизменяемыми копиями.
type Preset struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Icon        string       `json:"icon,omitempty"`
	Chord       config.Chord `json:"chord,omitempty"`
	Provider    string       `json:"provider"`
	Model       string       `json:"model"`
	Prompt      string       `json:"prompt"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at,omitempty"`
}

// NewID генерирует стабильный идентификатор пресета.
func NewID() string {
	return uuid.NewString()
}

// Validate проверяет поля пресета перед сохранением.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("пресет без имени")
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return fmt.Errorf("пресет %q без шаблона промпта", p.Name)
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		return fmt.Errorf("пресет %q: temperature %.2f вне диапазона [0, 1]", p.Name, p.Temperature)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("пресет %q: max_tokens должен быть положительным", p.Name)
	}
	if !p.Chord.IsZero() {
		if err := p.Chord.Validate(); err != nil {
			return fmt.Errorf("пресет %q: %w", p.Name, err)
		}
	}
	return nil
}

// BuildPrompt подставляет входной текст в шаблон. Если placeholder
// отсутствует, текст добавляется после шаблона через пустую строку.
func (p Preset) BuildPrompt(input string) string {
	if strings.Contains(p.Prompt, Placeholder) {
		return strings.ReplaceAll(p.Prompt, Placeholder, input)
	}
	return p.Prompt + "\n\n" + input
}
