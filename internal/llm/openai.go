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

// DefaultOpenAIBase - адрес OpenAI API по умолчанию.
const DefaultOpenAIBase = "https://api.openai.com/v1"

// OpenAI - клиент OpenAI Chat Completions API.
type OpenAI struct {
	apiKey     string
	orgID      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI создаёт клиент OpenAI.
func NewOpenAI(creds credentials.Bundle, timeout time.Duration) *OpenAI {
	base := creds.APIBase
	if base == "" {
		base = DefaultOpenAIBase
	}
	return &OpenAI{
		apiKey:  creds.APIKey,
		orgID:   creds.OrgID,
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Provider возвращает идентификатор провайдера.
func (c *OpenAI) Provider() string {
	return credentials.ProviderOpenAI
}

// chatRequest - тело запроса Chat Completions.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse - тело ответа Chat Completions.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete выполняет один запрос к Chat Completions API.
func (c *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
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

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.orgID != "" {
		httpReq.Header.Set("OpenAI-Organization", c.orgID)
	}

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
