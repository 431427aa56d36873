package line

// WebhookRequest тело webhook-запроса Messaging API.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type       string        `json:"type"`
	ReplyToken string        `json:"replyToken"`
	Timestamp  int64         `json:"timestamp"`
	Source     Source        `json:"source"`
	Message    *EventMessage `json:"message"`
}

type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type profileResponse struct {
	DisplayName string `json:"displayName"`
	UserID      string `json:"userId"`
}
