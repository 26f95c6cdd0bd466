package command

import (
	"context"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE ACTIVITY COMMAND
// Records the result of a finished activity. Score bounds are checked by
// the tracker so that an already completed activity reports the no-op first.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivityCommand contains an activity result.
type CompleteActivityCommand struct {
	UserID     string
	ActivityID int
	Score      int
	MaxScore   int
}

// Validate validates the command.
func (c CompleteActivityCommand) Validate() error {
	if c.UserID == "" {
		return invalid("complete_activity", "user_id is required")
	}
	if c.ActivityID <= 0 {
		return invalid("complete_activity", "activity_id must be positive")
	}
	return nil
}

// CompleteActivityResult contains the stored result.
type CompleteActivityResult struct {
	Activity progress.ActivityScore `json:"activity"`
	Percent  int                    `json:"percent"`
}

// CompleteActivityHandler handles CompleteActivityCommand.
type CompleteActivityHandler struct {
	sessions SessionOpener
}

// NewCompleteActivityHandler creates a new CompleteActivityHandler.
func NewCompleteActivityHandler(sessions SessionOpener) *CompleteActivityHandler {
	return &CompleteActivityHandler{sessions: sessions}
}

// Handle executes the command.
func (h *CompleteActivityHandler) Handle(ctx context.Context, cmd CompleteActivityCommand) (*CompleteActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	rec, err := s.CompleteActivity(ctx, catalog.ActivityID(cmd.ActivityID), cmd.Score, cmd.MaxScore)
	if err != nil {
		return nil, err
	}
	return &CompleteActivityResult{Activity: rec, Percent: rec.Percent().Int()}, nil
}
