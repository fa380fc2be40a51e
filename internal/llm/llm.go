// Package llm предоставляет клиентов провайдеров LLM.
//
// Все клиенты реализуют общий интерфейс Client: один запрос на одно
// выполнение, классифицированные ошибки, учёт токенов и задержки.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"promptpilot/internal/credentials"
)

// Request - параметры одного обращения к провайдеру.
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response - результат успешного обращения.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Elapsed      time.Duration
}

// ErrorKind классифицирует отказ провайдера для пользовательского
// сообщения ("проверьте API-ключ" против "запрос превысил таймаут").
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindAuth
	KindRateLimited
	KindTimeout
	KindBadRequest
	KindServer
)

// String возвращает машинное имя класса ошибки.
func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindBadRequest:
		return "bad_request"
	case KindServer:
		return "server"
	default:
		return "network"
	}
}

// RequestError - классифицированная ошибка обращения к провайдеру.
type RequestError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Client выполняет один запрос к LLM.
type Client interface {
	// Complete подставляет готовый промпт и возвращает текст ответа.
	Complete(ctx context.Context, req Request) (Response, error)
	// Provider возвращает идентификатор провайдера.
	Provider() string
}

// maxTokenCeiling - потолок max_tokens по провайдерам; значение пресета
// обрезается при отправке.
var maxTokenCeiling = map[string]int{
	credentials.ProviderOpenAI:    4096,
	credentials.ProviderAzure:     4096,
	credentials.ProviderAnthropic: 8192,
}

// clampMaxTokens ограничивает max_tokens потолком провайдера.
func clampMaxTokens(provider string, n int) int {
	if ceiling, ok := maxTokenCeiling[provider]; ok && n > ceiling {
		return ceiling
	}
	return n
}

// New создаёт клиент по идентификатору провайдера.
func New(provider string, creds credentials.Bundle, timeout time.Duration) (Client, error) {
	switch provider {
	case credentials.ProviderOpenAI:
		return NewOpenAI(creds, timeout), nil
	case credentials.ProviderAnthropic:
		return NewAnthropic(creds, timeout), nil
	case credentials.ProviderAzure:
		return NewAzure(creds, timeout), nil
	default:
		return nil, fmt.Errorf("неизвестный провайдер %q", provider)
	}
}

// classifyStatus переводит HTTP-статус в класс ошибки.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindBadRequest
	}
}

// classifyTransport различает таймаут и прочие сетевые сбои.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
