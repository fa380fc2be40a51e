package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store читает и сохраняет пресеты в JSON-файл (presets.json).
// Формат - плоский список, порядок в файле определяет приоритет при
// конфликте аккордов (последний выигрывает).
type Store struct {
	path string
}

// NewStore создаёт хранилище пресетов в указанной директории.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, "presets.json")}
}

// Path возвращает путь к файлу пресетов.
func (s *Store) Path() string {
	return s.path
}

// Load загружает пресеты из файла. Отсутствующий файл - пустой список.
func (s *Store) Load() ([]Preset, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("чтение %s: %w", s.path, err)
	}

	var presets []Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", s.path, err)
	}

	// Пресеты из старых версий файла могут не иметь id
	for i := range presets {
		if presets[i].ID == "" {
			presets[i].ID = NewID()
		}
	}

	return presets, nil
}

// Save сохраняет пресеты в файл, проставляя отметки времени.
func (s *Store) Save(presets []Preset) error {
	now := time.Now()
	for i := range presets {
		if presets[i].ID == "" {
			presets[i].ID = NewID()
		}
		if presets[i].CreatedAt.IsZero() {
			presets[i].CreatedAt = now
		}
		presets[i].UpdatedAt = now
	}

	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация пресетов: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("запись %s: %w", s.path, err)
	}
	return nil
}
