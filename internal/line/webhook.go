package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"linerelay/internal/httpserver"
	"linerelay/internal/relay"
	"log/slog"
)

// Dispatcher принимает работу без блокировки webhook-а.
type Dispatcher interface {
	Enqueue(job relay.Job) bool
}

type WebhookDeps struct {
	Dispatcher    Dispatcher
	Logger        *slog.Logger
	ChannelSecret string
}

// WebhookHandler тонкая точка входа: проверяет подпись, извлекает
// userId и текст, ставит задачу диспетчеру и сразу отвечает платформе.
// Все блокирующие операции происходят в диспетчере.
type WebhookHandler struct {
	dispatcher    Dispatcher
	logger        *slog.Logger
	channelSecret string
}

func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	return &WebhookHandler{
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		channelSecret: deps.ChannelSecret,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot read body")
		return
	}

	if h.channelSecret != "" {
		if !validSignature(h.channelSecret, body, r.Header.Get("X-Line-Signature")) {
			httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_signature", "invalid webhook signature")
			return
		}
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse webhook body")
		return
	}

	for _, ev := range req.Events {
		if ev.Type != "message" || ev.Message == nil || ev.Message.Type != "text" {
			continue
		}
		text := strings.TrimSpace(ev.Message.Text)
		if ev.Source.UserID == "" || text == "" {
			continue
		}
		accepted := h.dispatcher.Enqueue(relay.Job{
			UserID:     ev.Source.UserID,
			Text:       text,
			ReplyToken: ev.ReplyToken,
		})
		if !accepted {
			// Платформе всё равно отвечаем 200: ретрай webhook-а продублировал
			// бы остальные события из батча.
			h.logger.Warn("inbound message dropped",
				slog.String("user_id", ev.Source.UserID))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

// validSignature сверяет X-Line-Signature: base64 от HMAC-SHA256 тела
// запроса с channel secret в качестве ключа.
func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
