package relay

// Outcome решение политики для одного входящего сообщения.
type Outcome int

const (
	// OutcomeProceed продолжить: собрать контекст и вызвать бэкенд.
	OutcomeProceed Outcome = iota
	// OutcomeFresh сессия только что (пере)создана: отправить приветствие,
	// бэкенд не вызывать, счётчик не трогать.
	OutcomeFresh
	// OutcomeLimited дневной лимит исчерпан: отправить фиксированное
	// сообщение о лимите, бэкенд не вызывать.
	OutcomeLimited
)

// Evaluate чистая функция политики квоты и сброса.
// Свежесть проверяется раньше квоты: первое сообщение нового дня всегда
// получает приветствие, даже если вчерашний счётчик был на максимуме.
func Evaluate(wasReset bool, requestCount, maxPerDay int) Outcome {
	if wasReset {
		return OutcomeFresh
	}
	if requestCount >= maxPerDay {
		return OutcomeLimited
	}
	return OutcomeProceed
}
