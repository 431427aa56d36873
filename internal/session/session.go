package session

import "context"

// Role указывает автора реплики в диалоге.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn одна реплика диалога.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Snapshot read-only копия состояния сессии пользователя.
// История копируется, мутации снаружи не влияют на хранилище.
type Snapshot struct {
	UserID         string `json:"user_id"`
	History        []Turn `json:"history"`
	RequestCount   int    `json:"request_count"`
	LastActiveDate string `json:"last_active_date"`
	DisplayName    string `json:"display_name,omitempty"`
}

// Store интерфейс для хранения сессий пользователей.
// Все операции безопасны при конкурентных вызовах; мутации для одного
// userID линеаризуемы.
type Store interface {
	// GetOrCreate атомарно находит сессию. Если её нет или lastActiveDate
	// не совпадает с today, сессия переинициализируется (пустая история,
	// нулевой счётчик). Второй результат true означает, что сессия была
	// только что (пере)создана.
	GetOrCreate(ctx context.Context, userID, today string) (Snapshot, bool, error)

	// AppendTurn атомарно добавляет одну реплику. Вызывающий гарантирует
	// парность: user, затем model.
	AppendTurn(ctx context.Context, userID string, role Role, text string) error

	// IncrementRequestCount атомарно увеличивает счётчик запросов и
	// обновляет lastActiveDate.
	IncrementRequestCount(ctx context.Context, userID, today string) error

	// SnapshotHistory возвращает копию истории диалога.
	SnapshotHistory(ctx context.Context, userID string) ([]Turn, error)

	// Reset принудительно переинициализирует сессию (команда сброса).
	Reset(ctx context.Context, userID, today string) error

	// SetDisplayName сохраняет отображаемое имя, best-effort.
	SetDisplayName(ctx context.Context, userID, name string) error
}
