package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"linerelay/internal/config"
	"linerelay/internal/retry"
	"linerelay/internal/session"
	"log/slog"
)

var (
	// ErrEmptyResponse бэкенд вернул ответ без текста (пустой или
	// неожиданной формы).
	ErrEmptyResponse = errors.New("empty response from model")
)

// HTTPClient клиент generateContent API поверх обычного HTTP.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	retry      retry.Policy
	logger     *slog.Logger
}

func NewHTTPClient(cfg config.GeminiConfig, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = 3
	return &HTTPClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: httpClient,
		retry:      policy,
		logger:     logger,
	}
}

// Generate отправляет реплики в модель и возвращает текст первого
// кандидата. Транзиентные сбои (5xx, 429, сетевые) ретраятся политикой
// retry в пределах ctx.
func (c *HTTPClient) Generate(ctx context.Context, turns []session.Turn) (string, error) {
	contents := make([]content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, content{
			Role:  string(t.Role),
			Parts: []part{{Text: t.Text}},
		})
	}

	buf, err := json.Marshal(generateRequest{Contents: contents})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	resp, body, err := retry.DoHTTP(ctx, c.retry, c.logger, func(ctx context.Context) (*http.Response, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
		if err != nil {
			return nil, nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp, nil, fmt.Errorf("read response: %w", err)
		}
		return resp, respBody, nil
	})
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text := parsed.firstCandidateText()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// firstCandidateText склеивает части первого кандидата.
func (r generateResponse) firstCandidateText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
