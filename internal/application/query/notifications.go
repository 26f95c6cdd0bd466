package query

import (
	"context"

	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NOTIFICATIONS QUERY
// Журнал уведомлений, новые сверху, с постраничной выдачей.
// ══════════════════════════════════════════════════════════════════════════════

// GetNotificationsQuery - параметры запроса уведомлений.
type GetNotificationsQuery struct {
	UserID string

	// UnreadOnly - только непрочитанные.
	UnreadOnly bool

	Page     int
	PageSize int
}

// NotificationsDTO - страница журнала уведомлений.
type NotificationsDTO struct {
	Items    []notification.Notification `json:"items"`
	Unread   int                         `json:"unread"`
	Total    int                         `json:"total"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"pageSize"`
}

// GetNotificationsHandler обрабатывает GetNotificationsQuery.
type GetNotificationsHandler struct {
	sessions SessionOpener
}

// NewGetNotificationsHandler создаёт обработчик.
func NewGetNotificationsHandler(sessions SessionOpener) *GetNotificationsHandler {
	return &GetNotificationsHandler{sessions: sessions}
}

// Handle выполняет запрос.
func (h *GetNotificationsHandler) Handle(ctx context.Context, q GetNotificationsQuery) (*NotificationsDTO, error) {
	if err := validateUser("get_notifications", q.UserID); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	all, unread, err := s.Notifications(ctx)
	if err != nil {
		return nil, err
	}

	if q.UnreadOnly {
		filtered := make([]notification.Notification, 0, unread)
		for _, n := range all {
			if !n.Read {
				filtered = append(filtered, n)
			}
		}
		all = filtered
	}

	page := shared.NewPagination(q.Page, q.PageSize)
	start, end := page.Slice(len(all))

	return &NotificationsDTO{
		Items:    append([]notification.Notification{}, all[start:end]...),
		Unread:   unread,
		Total:    len(all),
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}
