package gemini

import (
	"context"

	"linerelay/internal/session"
)

// Client минимальный публичный интерфейс генеративного бэкенда.
// Таймаут задаёт вызывающий через ctx.
type Client interface {
	Generate(ctx context.Context, turns []session.Turn) (string, error)
}
