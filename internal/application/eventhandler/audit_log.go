// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT LOG HANDLER
// Пишет каждое доменное событие в структурированный лог.
// Истечение урока и выдача бейджа - на уровне Info, остальное - Debug.
// ═══════════════════════════════════════════════════════════════════════════

// AuditLogHandler журналирует доменные события.
type AuditLogHandler struct {
	log *logger.Logger
}

// NewAuditLogHandler создаёт обработчик.
func NewAuditLogHandler(log *logger.Logger) *AuditLogHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditLogHandler{log: log.With(logger.Component("audit"))}
}

// Register подписывает обработчик на все события.
func (h *AuditLogHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle обрабатывает одно событие.
func (h *AuditLogHandler) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.UserID(event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	for k, v := range event.Payload() {
		fields = append(fields, logger.Any(k, v))
	}

	switch event.EventType() {
	case shared.EventLessonExpired, shared.EventBadgeAwarded:
		h.log.Info("domain event", fields...)
	default:
		h.log.Debug("domain event", fields...)
	}
	return nil
}
