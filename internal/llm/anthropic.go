package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"promptpilot/internal/credentials"
)

const (
	// DefaultAnthropicBase - адрес Anthropic API по умолчанию.
	DefaultAnthropicBase = "https://api.anthropic.com"
	// anthropicVersion - обязательный заголовок версии Messages API.
	anthropicVersion = "2023-06-01"
)

// Anthropic - клиент Anthropic Messages API.
type Anthropic struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropic создаёт клиент Anthropic.
func NewAnthropic(creds credentials.Bundle, timeout time.Duration) *Anthropic {
	base := creds.APIBase
	if base == "" {
		base = DefaultAnthropicBase
	}
	return &Anthropic{
		apiKey:  creds.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Provider возвращает идентификатор провайдера.
func (c *Anthropic) Provider() string {
	return credentials.ProviderAnthropic
}

// messagesRequest - тело запроса Messages API.
type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

// messagesResponse - тело ответа Messages API.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete выполняет один запрос к Messages API.
func (c *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	body := messagesRequest{
		Model:       req.Model,
		MaxTokens:   clampMaxTokens(c.Provider(), req.MaxTokens),
		Temperature: req.Temperature,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, &RequestError{Provider: c.Provider(), Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Response{}, &RequestError{
			Provider: c.Provider(),
			Kind:     classifyStatus(resp.StatusCode),
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))),
		}
	}

	var result messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Response{}, &RequestError{Provider: c.Provider(), Kind: KindServer, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Error != nil {
		return Response{}, &RequestError{Provider: c.Provider(), Kind: KindServer, Err: fmt.Errorf("%s", result.Error.Message)}
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, &RequestError{Provider: c.Provider(), Kind: KindServer, Err: fmt.Errorf("ответ без текстовых блоков")}
	}

	return Response{
		Text:         text.String(),
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Elapsed:      time.Since(start),
	}, nil
}
