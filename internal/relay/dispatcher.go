package relay

import (
	"context"
	"strings"
	"sync"
	"time"

	"linerelay/internal/session"
	"log/slog"
)

// Backend минимальный интерфейс генеративного бэкенда.
type Backend interface {
	Generate(ctx context.Context, turns []session.Turn) (string, error)
}

// Messenger интерфейс исходящей доставки мессенджера.
// Reply вызывается из фоновой задачи, возможно спустя секунды после того,
// как webhook-запрос уже завершился.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Profile(ctx context.Context, userID string) (string, error)
}

// Job одно входящее сообщение, поставленное в очередь диспетчера.
// ReplyToken непрозрачный одноразовый токен платформы, передаётся в
// Messenger без изменений.
type Job struct {
	UserID     string
	Text       string
	ReplyToken string
}

type DispatcherDeps struct {
	Store           session.Store
	Backend         Backend
	Messenger       Messenger
	Logger          *slog.Logger
	MaxRequests     int
	MaxContextTurns int
	BackendTimeout  time.Duration
	Location        *time.Location
	Workers         int
	QueueSize       int
	Now             func() time.Time
}

// Dispatcher асинхронный конвейер ответов: ограниченный пул воркеров
// снимает задачи с буферизованной очереди и выполняет вызов бэкенда и
// доставку ответа вне критического пути webhook-а.
type Dispatcher struct {
	store           session.Store
	backend         Backend
	messenger       Messenger
	logger          *slog.Logger
	maxRequests     int
	maxContextTurns int
	backendTimeout  time.Duration
	location        *time.Location
	workers         int
	now             func() time.Time

	jobs chan Job
	wg   sync.WaitGroup
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	workers := deps.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := deps.BackendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Dispatcher{
		store:           deps.Store,
		backend:         deps.Backend,
		messenger:       deps.Messenger,
		logger:          deps.Logger,
		maxRequests:     deps.MaxRequests,
		maxContextTurns: deps.MaxContextTurns,
		backendTimeout:  timeout,
		location:        loc,
		workers:         workers,
		now:             now,
		jobs:            make(chan Job, queueSize),
	}
}

// Start запускает пул воркеров. ctx отменяет задачи в полёте.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				d.safeProcess(ctx, job)
			}
		}()
	}
}

// Stop закрывает очередь и дожидается завершения воркеров.
// Новые Enqueue после Stop недопустимы.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

// Enqueue ставит сообщение в очередь не блокируясь: webhook должен
// ответить платформе в пределах её таймаута независимо от нагрузки.
// При переполненной очереди сообщение отбрасывается с записью в лог.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case d.jobs <- job:
		return true
	default:
		d.logger.Warn("dispatch queue full, message dropped",
			slog.String("user_id", job.UserID))
		return false
	}
}

// safeProcess изолирует панику одной задачи от остального пула.
func (d *Dispatcher) safeProcess(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic in dispatcher",
				slog.Any("error", rec),
				slog.String("user_id", job.UserID))
		}
	}()
	d.process(ctx, job)
}

// process конечный автомат одного сообщения:
// RECEIVED → POLICY_CHECK → {FRESH | LIMITED | BACKEND_CALL} → REPLY_SENT.
// Мутации сессии происходят только после подтверждённого успеха бэкенда.
func (d *Dispatcher) process(ctx context.Context, job Job) {
	today := d.today()

	if isResetCommand(job.Text) {
		if err := d.store.Reset(ctx, job.UserID, today); err != nil {
			d.logger.Error("session reset failed",
				slog.String("error", err.Error()),
				slog.String("user_id", job.UserID))
			d.reply(ctx, job.ReplyToken, MsgBackendFailure)
			return
		}
		d.reply(ctx, job.ReplyToken, MsgOnboarding)
		return
	}

	snap, wasReset, err := d.store.GetOrCreate(ctx, job.UserID, today)
	if err != nil {
		d.logger.Error("session lookup failed",
			slog.String("error", err.Error()),
			slog.String("user_id", job.UserID))
		d.reply(ctx, job.ReplyToken, MsgBackendFailure)
		return
	}

	switch Evaluate(wasReset, snap.RequestCount, d.maxRequests) {
	case OutcomeFresh:
		d.recordDisplayName(ctx, job.UserID)
		d.reply(ctx, job.ReplyToken, MsgOnboarding)
		return
	case OutcomeLimited:
		d.reply(ctx, job.ReplyToken, MsgQuotaExceeded)
		return
	}

	turns := BuildWindow(SYSTEM_PREAMBLE, PREAMBLE_ACK, snap.History, job.Text, d.maxContextTurns)

	callCtx, cancel := context.WithTimeout(ctx, d.backendTimeout)
	answer, err := d.backend.Generate(callCtx, turns)
	cancel()
	if err != nil || strings.TrimSpace(answer) == "" {
		// Таймаут, ошибка и пустой ответ обрабатываются одинаково:
		// сессия не меняется, квота не расходуется, пользователь может
		// повторить без штрафа.
		if err != nil {
			d.logger.Error("backend call failed",
				slog.String("error", err.Error()),
				slog.String("user_id", job.UserID))
		} else {
			d.logger.Error("backend returned empty reply",
				slog.String("user_id", job.UserID))
		}
		d.reply(ctx, job.ReplyToken, MsgBackendFailure)
		return
	}

	if err := d.store.AppendTurn(ctx, job.UserID, session.RoleUser, job.Text); err != nil {
		d.logger.Error("append user turn failed",
			slog.String("error", err.Error()),
			slog.String("user_id", job.UserID))
	}
	if err := d.store.AppendTurn(ctx, job.UserID, session.RoleModel, answer); err != nil {
		d.logger.Error("append model turn failed",
			slog.String("error", err.Error()),
			slog.String("user_id", job.UserID))
	}
	if err := d.store.IncrementRequestCount(ctx, job.UserID, today); err != nil {
		d.logger.Error("increment request count failed",
			slog.String("error", err.Error()),
			slog.String("user_id", job.UserID))
	}

	d.reply(ctx, job.ReplyToken, answer)
}

// reply доставляет исходящее сообщение. Ошибка доставки терминальна:
// reply token одноразовый, повторить некуда, только лог.
func (d *Dispatcher) reply(ctx context.Context, replyToken, text string) {
	if err := d.messenger.Reply(ctx, replyToken, text); err != nil {
		d.logger.Error("reply delivery failed",
			slog.String("error", err.Error()))
	}
}

// recordDisplayName подтягивает имя профиля, best-effort.
func (d *Dispatcher) recordDisplayName(ctx context.Context, userID string) {
	name, err := d.messenger.Profile(ctx, userID)
	if err != nil || name == "" {
		return
	}
	if err := d.store.SetDisplayName(ctx, userID, name); err != nil {
		d.logger.Warn("save display name failed",
			slog.String("error", err.Error()),
			slog.String("user_id", userID))
	}
}

// today текущая календарная дата в фиксированном часовом поясе платформы.
// Использование процессной локали дало бы разные сбросы в разных
// деплоях.
func (d *Dispatcher) today() string {
	return d.now().In(d.location).Format("2006-01-02")
}

func isResetCommand(text string) bool {
	switch strings.TrimSpace(text) {
	case "/reset", "リセット":
		return true
	}
	return false
}
