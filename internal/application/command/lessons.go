// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/eduaid/eduaid-hub/internal/application/session"
	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// SessionOpener returns the progress session of a learner.
type SessionOpener interface {
	Open(ctx context.Context, userID string) (*session.Session, error)
}

func invalid(op, message string) error {
	return shared.NewDomainError("command", op, shared.ErrInvalidInput, message)
}

// ══════════════════════════════════════════════════════════════════════════════
// START LESSON COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// StartLessonCommand starts a lesson for a learner.
type StartLessonCommand struct {
	UserID   string
	LessonID int
}

// Validate validates the command.
func (c StartLessonCommand) Validate() error {
	if c.UserID == "" {
		return invalid("start_lesson", "user_id is required")
	}
	if c.LessonID <= 0 {
		return invalid("start_lesson", "lesson_id must be positive")
	}
	return nil
}

// LessonResult is the lesson record after a lesson command.
type LessonResult struct {
	Lesson progress.LessonProgress `json:"lesson"`
}

// StartLessonHandler handles StartLessonCommand.
type StartLessonHandler struct {
	sessions SessionOpener
}

// NewStartLessonHandler creates a new StartLessonHandler.
func NewStartLessonHandler(sessions SessionOpener) *StartLessonHandler {
	return &StartLessonHandler{sessions: sessions}
}

// Handle executes the command.
func (h *StartLessonHandler) Handle(ctx context.Context, cmd StartLessonCommand) (*LessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	rec, err := s.StartLesson(ctx, catalog.LessonID(cmd.LessonID))
	if err != nil {
		return nil, err
	}
	return &LessonResult{Lesson: rec}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE LESSON PROGRESS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateLessonProgressCommand records how far a learner got in a lesson.
type UpdateLessonProgressCommand struct {
	UserID   string
	LessonID int
	Percent  int

	// Exit marks the "save & exit" action, which also confirms the save
	// with a notification.
	Exit bool
}

// Validate validates the command.
func (c UpdateLessonProgressCommand) Validate() error {
	if c.UserID == "" {
		return invalid("update_lesson_progress", "user_id is required")
	}
	if c.LessonID <= 0 {
		return invalid("update_lesson_progress", "lesson_id must be positive")
	}
	return nil
}

// UpdateLessonProgressHandler handles UpdateLessonProgressCommand.
type UpdateLessonProgressHandler struct {
	sessions SessionOpener
}

// NewUpdateLessonProgressHandler creates a new UpdateLessonProgressHandler.
func NewUpdateLessonProgressHandler(sessions SessionOpener) *UpdateLessonProgressHandler {
	return &UpdateLessonProgressHandler{sessions: sessions}
}

// Handle executes the command.
func (h *UpdateLessonProgressHandler) Handle(ctx context.Context, cmd UpdateLessonProgressCommand) (*LessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	id := catalog.LessonID(cmd.LessonID)
	var rec progress.LessonProgress
	if cmd.Exit {
		rec, err = s.SaveAndExitLesson(ctx, id, cmd.Percent)
	} else {
		rec, err = s.UpdateLessonProgress(ctx, id, cmd.Percent)
	}
	if err != nil {
		return nil, err
	}
	return &LessonResult{Lesson: rec}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand completes a started lesson.
type CompleteLessonCommand struct {
	UserID   string
	LessonID int
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.UserID == "" {
		return invalid("complete_lesson", "user_id is required")
	}
	if c.LessonID <= 0 {
		return invalid("complete_lesson", "lesson_id must be positive")
	}
	return nil
}

// CompleteLessonHandler handles CompleteLessonCommand.
type CompleteLessonHandler struct {
	sessions SessionOpener
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler.
func NewCompleteLessonHandler(sessions SessionOpener) *CompleteLessonHandler {
	return &CompleteLessonHandler{sessions: sessions}
}

// Handle executes the command.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*LessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	rec, err := s.CompleteLesson(ctx, catalog.LessonID(cmd.LessonID))
	if err != nil {
		return nil, err
	}
	return &LessonResult{Lesson: rec}, nil
}
