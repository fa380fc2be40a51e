package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"promptpilot/internal/i18n"
	"promptpilot/internal/llm"
)

func TestSetEnabledConcurrentWithReads(t *testing.T) {
	// Переключатель дёргается из горутины трея, пока горутина
	// выполнения проверяет флаг
	n := New(true)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			n.SetEnabled(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = n.enabled.Load()
		}
	}()
	wg.Wait()

	n.SetEnabled(false)
	assert.False(t, n.enabled.Load())
	n.SetEnabled(true)
	assert.True(t, n.enabled.Load())
}

func TestLLMMessageByKind(t *testing.T) {
	tests := []struct {
		kind llm.ErrorKind
		key  string
	}{
		{llm.KindAuth, "error_llm_auth"},
		{llm.KindRateLimited, "error_llm_rate_limited"},
		{llm.KindTimeout, "error_llm_timeout"},
		{llm.KindNetwork, "error_llm_network"},
		{llm.KindServer, "error_llm_server"},
		{llm.KindBadRequest, "error_llm_bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := &llm.RequestError{Provider: "openai", Kind: tt.kind, Err: errors.New("x")}
			assert.Equal(t, i18n.T(tt.key), llmMessage(err))
		})
	}

	// Ошибка не от провайдера - скорее всего не настроены учётные данные
	assert.Equal(t, i18n.T("error_credentials"), llmMessage(errors.New("plain")))
}
