package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultOpenAIBaseURL is the OpenAI API base URL.
	defaultOpenAIBaseURL = "https://api.openai.com"

	// defaultOpenAITemperature keeps annotations near-deterministic.
	defaultOpenAITemperature = 0.1

	// defaultOpenAIMaxTokens bounds the annotation payload size.
	defaultOpenAIMaxTokens = 2048
)

// chatRequest is the request body for the Chat Completions API.
type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

// chatMessage is a single message in the Chat Completions API.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponseFormat requests JSON-mode decoding.
type chatResponseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the response body from the Chat Completions API.
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
}

// openaiErrorResponse wraps the error payload from the OpenAI API.
type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// Compile-time check that OpenAIProvider implements Provider.
var _ Provider = (*OpenAIProvider)(nil)

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o").
	Model string
	// BaseURL overrides the API base URL; used in tests.
	BaseURL string
	// Temperature overrides the sampling temperature when non-zero.
	Temperature float64
}

// NewOpenAIProvider creates an OpenAIProvider. The timeout parameter
// controls the HTTP client timeout; maxRetries controls how many times
// transient errors are retried.
func NewOpenAIProvider(cfg OpenAIConfig, timeout time.Duration, maxRetries int) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultOpenAITemperature
	}

	return &OpenAIProvider{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     baseURL,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  time.Second,
	}
}

// Annotate sends the record to the Chat Completions API in JSON mode and
// parses the structured annotation from the first choice.
//
// Transient errors are retried up to maxRetries times with exponential
// backoff; quota exhaustion is returned immediately.
func (p *OpenAIProvider) Annotate(ctx context.Context, req AnnotationRequest) (*Annotation, error) {
	apiReq := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature:    p.temperature,
		MaxTokens:      defaultOpenAIMaxTokens,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	}

	var resp *chatResponse
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("openai: context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, lastErr = p.sendRequest(ctx, apiReq)
		if lastErr == nil {
			break
		}

		if !isTransientError(lastErr) {
			return nil, lastErr
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("openai: all %d retries exhausted: %w", p.maxRetries, lastErr)
	}

	return p.parseResponse(resp)
}

// Provider returns the provider name.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// sendRequest sends a single Chat Completions request and returns the
// parsed response or an error.
func (p *OpenAIProvider) sendRequest(ctx context.Context, apiReq chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	endpoint := p.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Provider:   "openai",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider:   "openai",
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(httpResp.StatusCode, respBody)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// parseResponse extracts the annotation JSON from the first choice.
func (p *OpenAIProvider) parseResponse(resp *chatResponse) (*Annotation, error) {
	if len(resp.Choices) == 0 {
		return nil, &ParseError{Provider: "openai", Reason: "no choices in response"}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	return parseAnnotation("openai", []byte(text))
}

// parseOpenAIAPIError builds an APIError from a non-200 response.
func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	var errResp openaiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{
			Provider:   "openai",
			StatusCode: statusCode,
			Message:    errResp.Error.Message,
			Type:       errResp.Error.Type,
			Code:       errResp.Error.Code,
		}
	}
	return &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}
}
