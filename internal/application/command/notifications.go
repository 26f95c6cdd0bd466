package command

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// MARK NOTIFICATIONS READ COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// MarkNotificationsReadCommand marks one notification, or all of them, as read.
type MarkNotificationsReadCommand struct {
	UserID         string
	NotificationID int64

	// All ignores NotificationID and marks the whole log.
	All bool
}

// Validate validates the command.
func (c MarkNotificationsReadCommand) Validate() error {
	if c.UserID == "" {
		return invalid("mark_notifications_read", "user_id is required")
	}
	if !c.All && c.NotificationID <= 0 {
		return invalid("mark_notifications_read", "notification_id must be positive")
	}
	return nil
}

// MarkNotificationsReadResult contains how many notifications changed.
type MarkNotificationsReadResult struct {
	Marked int `json:"marked"`
}

// MarkNotificationsReadHandler handles MarkNotificationsReadCommand.
type MarkNotificationsReadHandler struct {
	sessions SessionOpener
}

// NewMarkNotificationsReadHandler creates a new MarkNotificationsReadHandler.
func NewMarkNotificationsReadHandler(sessions SessionOpener) *MarkNotificationsReadHandler {
	return &MarkNotificationsReadHandler{sessions: sessions}
}

// Handle executes the command.
func (h *MarkNotificationsReadHandler) Handle(ctx context.Context, cmd MarkNotificationsReadCommand) (*MarkNotificationsReadResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	if cmd.All {
		n, err := s.MarkAllRead(ctx)
		if err != nil {
			return nil, err
		}
		return &MarkNotificationsReadResult{Marked: n}, nil
	}

	if err := s.MarkRead(ctx, cmd.NotificationID); err != nil {
		return nil, err
	}
	return &MarkNotificationsReadResult{Marked: 1}, nil
}
