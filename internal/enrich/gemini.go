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
	// defaultGeminiBaseURL is the Generative Language API base URL.
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	// defaultGeminiTemperature keeps annotations near-deterministic.
	defaultGeminiTemperature = 0.1

	// defaultGeminiMaxOutputTokens bounds the annotation payload size.
	defaultGeminiMaxOutputTokens = 2048
)

// geminiRequest is the request body for the generateContent endpoint.
type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

// geminiContent is one message in the generateContent request or response.
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is a single text part.
type geminiPart struct {
	Text string `json:"text"`
}

// geminiGenerationConfig controls decoding. The response schema constrains
// the model to the annotation JSON shape.
type geminiGenerationConfig struct {
	Temperature      float64        `json:"temperature"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

// geminiResponse is the response body from the generateContent endpoint.
type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// geminiErrorResponse wraps the error payload from the API.
type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiProvider implements Provider using the Google Generative Language
// API.
type GeminiProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// Compile-time check that GeminiProvider implements Provider.
var _ Provider = (*GeminiProvider)(nil)

// GeminiConfig holds the parameters needed to create a Gemini provider.
type GeminiConfig struct {
	// APIKey is the Generative Language API key.
	APIKey string
	// Model is the model identifier (e.g., "gemini-2.0-flash").
	Model string
	// BaseURL overrides the API base URL; used in tests.
	BaseURL string
	// Temperature overrides the sampling temperature when non-zero.
	Temperature float64
}

// NewGeminiProvider creates a GeminiProvider. The timeout parameter
// controls the HTTP client timeout; maxRetries controls how many times
// transient errors are retried.
func NewGeminiProvider(cfg GeminiConfig, timeout time.Duration, maxRetries int) *GeminiProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultGeminiTemperature
	}

	return &GeminiProvider{
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

// Annotate sends the record to the generateContent endpoint and parses the
// structured annotation from the first candidate.
//
// Transient errors (status 429 without quota exhaustion, 5xx, network) are
// retried up to maxRetries times with exponential backoff. Quota
// exhaustion is returned immediately; the caller must stop spending.
func (p *GeminiProvider) Annotate(ctx context.Context, req AnnotationRequest) (*Annotation, error) {
	apiReq := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: buildUserPrompt(req)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      p.temperature,
			MaxOutputTokens:  defaultGeminiMaxOutputTokens,
			ResponseMIMEType: "application/json",
			ResponseSchema:   annotationSchema,
		},
	}

	var resp *geminiResponse
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("gemini: context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, lastErr = p.sendRequest(ctx, apiReq)
		if lastErr == nil {
			break
		}

		// Only retry on transient errors.
		if !isTransientError(lastErr) {
			return nil, lastErr
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("gemini: all %d retries exhausted: %w", p.maxRetries, lastErr)
	}

	return p.parseResponse(resp)
}

// Provider returns the provider name.
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Model returns the model identifier being used.
func (p *GeminiProvider) Model() string {
	return p.model
}

// sendRequest sends a single generateContent request and returns the
// parsed response or an error.
func (p *GeminiProvider) sendRequest(ctx context.Context, apiReq geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are considered transient and eligible for retry.
		return nil, &APIError{
			Provider:   "gemini",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider:   "gemini",
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseGeminiAPIError(httpResp.StatusCode, respBody)
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("gemini: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// parseResponse extracts the annotation JSON from the first candidate.
func (p *GeminiProvider) parseResponse(resp *geminiResponse) (*Annotation, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Provider: "gemini", Reason: "no candidates in response"}
	}

	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	return parseAnnotation("gemini", []byte(text))
}

// parseGeminiAPIError builds an APIError from a non-200 response.
func parseGeminiAPIError(statusCode int, body []byte) *APIError {
	var errResp geminiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{
			Provider:   "gemini",
			StatusCode: statusCode,
			Message:    errResp.Error.Message,
			Type:       errResp.Error.Status,
		}
	}
	return &APIError{
		Provider:   "gemini",
		StatusCode: statusCode,
		Message:    string(body),
	}
}
