package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"promptpilot/internal/credentials"
)

// DefaultAzureAPIVersion - версия Azure OpenAI API по умолчанию.
const DefaultAzureAPIVersion = "2023-09-01-preview"

// Azure - клиент Azure OpenAI. Использует тот же формат Chat Completions
// что и OpenAI, но модель задаётся deployment'ом в URL, а ключ
// передаётся заголовком api-key.
type Azure struct {
	apiKey     string
	endpoint   string
	deployment string
	apiVersion string
	httpClient *http.Client
}

// NewAzure создаёт клиент Azure OpenAI.
func NewAzure(creds credentials.Bundle, timeout time.Duration) *Azure {
	version := creds.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	return &Azure{
		apiKey:     creds.APIKey,
		endpoint:   strings.TrimRight(creds.Endpoint, "/"),
		deployment: creds.Deployment,
		apiVersion: version,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Provider возвращает идентификатор провайдера.
func (c *Azure) Provider() string {
	return credentials.ProviderAzure
}

// Complete выполняет один запрос к Azure OpenAI Chat Completions.
func (c *Azure) Complete(ctx context.Context, req Request) (Response, error) {
	// Модель в Azure определяется deployment'ом, поле model игнорируется
	body := chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   clampMaxTokens(c.Provider(), req.MaxTokens),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(c.deployment), url.QueryEscape(c.apiVersion))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

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

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Response{}, &RequestError{Provider: c.Provider(), Kind: KindServer, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Error != nil {
		return Response{}, &RequestError{Provider: c.Provider(), Kind: KindServer, Err: fmt.Errorf("%s", result.Error.Message)}
	}
	if len(result.Choices) == 0 {
		return Response{}, &RequestError{Provider: c.Provider(), Kind: KindServer, Err: fmt.Errorf("пустой список choices")}
	}

	return Response{
		Text:         result.Choices[0].Message.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		Elapsed:      time.Since(start),
	}, nil
}
