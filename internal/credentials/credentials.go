// Package credentials хранит учётные данные провайдеров LLM.
//
// Источники в порядке приоритета: переменные окружения (включая .env
// рядом с бинарником), затем credentials.json. Сырой ключ никогда не
// логируется.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Идентификаторы поддерживаемых провайдеров.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderAzure     = "azure"
)

// ErrNotConfigured - для провайдера не задан API-ключ.
var ErrNotConfigured = errors.New("учётные данные провайдера не настроены")

// Bundle - набор учётных данных одного провайдера. Какие поля значимы,
// зависит от провайдера: Endpoint/APIVersion/Deployment нужны только Azure.
type Bundle struct {
	APIKey     string `json:"api_key"`
	OrgID      string `json:"org_id,omitempty"`
	APIBase    string `json:"api_base,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
	Deployment string `json:"deployment,omitempty"`
}

// Store загружает и отдаёт учётные данные по идентификатору провайдера.
type Store struct {
	mu      sync.RWMutex
	path    string
	bundles map[string]Bundle
}

// NewStore создаёт хранилище учётных данных в указанной директории.
// Файл .env в той же директории подхватывается если существует.
func NewStore(dir string) *Store {
	// .env опционален, отсутствие - не ошибка
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	s := &Store{
		path:    filepath.Join(dir, "credentials.json"),
		bundles: make(map[string]Bundle),
	}
	s.load()
	return s
}

// load читает credentials.json. Отсутствующий или битый файл даёт
// пустое хранилище: ключи тогда берутся только из окружения.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var bundles map[string]Bundle
	if err := json.Unmarshal(data, &bundles); err != nil {
		return
	}
	s.bundles = bundles
}

// Save сохраняет учётные данные провайдера в файл.
func (s *Store) Save(provider string, b Bundle) error {
	if err := Validate(provider, b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bundles[provider] = b
	data, err := json.MarshalIndent(s.bundles, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация учётных данных: %w", err)
	}
	// 0600: файл содержит API-ключи
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("запись %s: %w", s.path, err)
	}
	return nil
}

// Get возвращает учётные данные провайдера с учётом переменных окружения.
func (s *Store) Get(provider string) (Bundle, error) {
	s.mu.RLock()
	b := s.bundles[provider]
	s.mu.RUnlock()

	applyEnv(provider, &b)

	if b.APIKey == "" {
		return Bundle{}, fmt.Errorf("%w: %s", ErrNotConfigured, provider)
	}
	return b, nil
}

// applyEnv накладывает переменные окружения поверх значений из файла.
func applyEnv(provider string, b *Bundle) {
	switch provider {
	case ProviderOpenAI:
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			b.APIKey = v
		}
		if v := os.Getenv("OPENAI_ORG_ID"); v != "" {
			b.OrgID = v
		}
		if v := os.Getenv("OPENAI_API_BASE"); v != "" {
			b.APIBase = v
		}
	case ProviderAnthropic:
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			b.APIKey = v
		}
		if v := os.Getenv("ANTHROPIC_API_BASE"); v != "" {
			b.APIBase = v
		}
	case ProviderAzure:
		if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
			b.APIKey = v
		}
		if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
			b.Endpoint = v
		}
		if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); v != "" {
			b.Deployment = v
		}
		if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
			b.APIVersion = v
		}
	}
}

// Validate проверяет правдоподобность учётных данных провайдера:
// формат ключа и обязательные поля.
func Validate(provider string, b Bundle) error {
	if strings.TrimSpace(b.APIKey) == "" {
		return fmt.Errorf("%s: пустой API-ключ", provider)
	}
	switch provider {
	case ProviderOpenAI:
		if !strings.HasPrefix(b.APIKey, "sk-") {
			return fmt.Errorf("openai: ключ должен начинаться с sk-")
		}
	case ProviderAnthropic:
		if !strings.HasPrefix(b.APIKey, "sk_ant_") && !strings.HasPrefix(b.APIKey, "sk-ant-") {
			return fmt.Errorf("anthropic: ключ должен начинаться с sk_ant_")
		}
	case ProviderAzure:
		if b.Endpoint == "" {
			return fmt.Errorf("azure: не задан endpoint")
		}
		if b.Deployment == "" {
			return fmt.Errorf("azure: не задан deployment")
		}
	default:
		return fmt.Errorf("неизвестный провайдер %q", provider)
	}
	return nil
}

// Providers возвращает список поддерживаемых провайдеров.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderAzure}
}
