package relay

import "linerelay/internal/session"

// BuildWindow собирает последовательность реплик для бэкенда:
//  1. фиксированная пара преамбулы (инструкция от user, подтверждение от
//     model) — не считается в лимит и не сохраняется в историю;
//  2. последние maxTurns*2 реплик истории в исходном порядке (старые
//     сохранённые реплики первыми);
//  3. новое сообщение пользователя последней репликой.
//
// Ограничение по недавним репликам детерминированно ограничивает расход
// токенов бэкенда.
func BuildWindow(preamble, ack string, history []session.Turn, newMessage string, maxTurns int) []session.Turn {
	limit := maxTurns * 2
	if limit < 0 {
		limit = 0
	}

	recent := history
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}

	turns := make([]session.Turn, 0, len(recent)+3)
	turns = append(turns,
		session.Turn{Role: session.RoleUser, Text: preamble},
		session.Turn{Role: session.RoleModel, Text: ack},
	)
	turns = append(turns, recent...)
	turns = append(turns, session.Turn{Role: session.RoleUser, Text: newMessage})
	return turns
}
