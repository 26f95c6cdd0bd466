// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"

	"github.com/eduaid/eduaid-hub/internal/application/session"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// SessionOpener возвращает сессию ученика.
type SessionOpener interface {
	Open(ctx context.Context, userID string) (*session.Session, error)
}

var errUserRequired = errors.New("user_id is required")

func validateUser(op, userID string) error {
	if userID == "" {
		return shared.WrapError("query", op, shared.ErrInvalidInput, "invalid query", errUserRequired)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Сводка для главной страницы: общий прогресс, достижения, ближайшие сроки.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery - параметры запроса сводки.
type GetDashboardQuery struct {
	UserID string
}

// GetDashboardHandler обрабатывает GetDashboardQuery.
type GetDashboardHandler struct {
	sessions SessionOpener
}

// NewGetDashboardHandler создаёт обработчик.
func NewGetDashboardHandler(sessions SessionOpener) *GetDashboardHandler {
	return &GetDashboardHandler{sessions: sessions}
}

// Handle выполняет запрос.
func (h *GetDashboardHandler) Handle(ctx context.Context, q GetDashboardQuery) (*progress.Dashboard, error) {
	if err := validateUser("get_dashboard", q.UserID); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	d, err := s.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery - параметры запроса сырого прогресса.
type GetProgressQuery struct {
	UserID string
}

// GetProgressHandler обрабатывает GetProgressQuery.
type GetProgressHandler struct {
	sessions SessionOpener
}

// NewGetProgressHandler создаёт обработчик.
func NewGetProgressHandler(sessions SessionOpener) *GetProgressHandler {
	return &GetProgressHandler{sessions: sessions}
}

// Handle выполняет запрос.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*session.ProgressView, error) {
	if err := validateUser("get_progress", q.UserID); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	v, err := s.Progress(ctx)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
