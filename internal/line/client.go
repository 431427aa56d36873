package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"linerelay/internal/config"
)

// BotClient интерфейс исходящих вызовов Messaging API.
type BotClient interface {
	Reply(ctx context.Context, replyToken, text string) error
	Profile(ctx context.Context, userID string) (string, error)
}

type HTTPBotClient struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

func NewClient(cfg config.LineConfig, httpClient *http.Client) *HTTPBotClient {
	return &HTTPBotClient{
		accessToken: cfg.ChannelAccessToken,
		baseURL:     cfg.APIBaseURL,
		httpClient:  httpClient,
	}
}

// Reply отправляет текстовый ответ по одноразовому reply token.
// Токен ограничен по времени, повтор невозможен: ошибка возвращается
// вызывающему только для логирования.
func (c *HTTPBotClient) Reply(ctx context.Context, replyToken, text string) error {
	payload := replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal line request: %w", err)
	}

	url := c.baseURL + "/v2/bot/message/reply"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build line request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute line request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("line api status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Profile возвращает отображаемое имя пользователя.
func (c *HTTPBotClient) Profile(ctx context.Context, userID string) (string, error) {
	url := c.baseURL + "/v2/bot/profile/" + userID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build line request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute line request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("line api status %d: %s", resp.StatusCode, string(respBody))
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("decode line response: %w", err)
	}
	return profile.DisplayName, nil
}
