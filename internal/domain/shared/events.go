// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents a learner state transition.
const (
	// Lesson events
	EventLessonStarted   EventType = "lesson.started"
	EventLessonCompleted EventType = "lesson.completed"
	EventLessonExpired   EventType = "lesson.expired"

	// Activity events
	EventActivityCompleted EventType = "activity.completed"

	// Achievement events
	EventBadgeAwarded EventType = "achievement.badge_awarded"

	// Notification events
	EventNotificationAdded EventType = "notification.added"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event
	// (the learner's user ID).
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the engine clock.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonStartedEvent is emitted when a learner starts a lesson.
type LessonStartedEvent struct {
	BaseEvent
	LessonID  int       `json:"lesson_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Payload implements Event interface.
func (e LessonStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id":  e.LessonID,
		"expires_at": e.ExpiresAt.Format(time.RFC3339),
	}
}

// NewLessonStartedEvent creates a new LessonStartedEvent.
func NewLessonStartedEvent(userID string, lessonID int, at, expiresAt time.Time) LessonStartedEvent {
	return LessonStartedEvent{
		BaseEvent: NewBaseEvent(EventLessonStarted, userID, at),
		LessonID:  lessonID,
		ExpiresAt: expiresAt,
	}
}

// LessonCompletedEvent is emitted the first time a lesson is completed.
type LessonCompletedEvent struct {
	BaseEvent
	LessonID         int   `json:"lesson_id"`
	CompletedLessons int   `json:"completed_lessons"`
	Unlocked         []int `json:"unlocked,omitempty"` // newly provisioned activity IDs
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id":         e.LessonID,
		"completed_lessons": e.CompletedLessons,
		"unlocked":          e.Unlocked,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID string, lessonID, completedLessons int, unlocked []int, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:        NewBaseEvent(EventLessonCompleted, userID, at),
		LessonID:         lessonID,
		CompletedLessons: completedLessons,
		Unlocked:         unlocked,
	}
}

// LessonExpiredEvent is emitted when the sweep drops an abandoned lesson.
type LessonExpiredEvent struct {
	BaseEvent
	LessonID        int       `json:"lesson_id"`
	ProgressPercent int       `json:"progress_percent"`
	ExpiredAt       time.Time `json:"expired_at"`
}

// Payload implements Event interface.
func (e LessonExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id":        e.LessonID,
		"progress_percent": e.ProgressPercent,
		"expired_at":       e.ExpiredAt.Format(time.RFC3339),
	}
}

// NewLessonExpiredEvent creates a new LessonExpiredEvent.
func NewLessonExpiredEvent(userID string, lessonID, progressPercent int, expiredAt, at time.Time) LessonExpiredEvent {
	return LessonExpiredEvent{
		BaseEvent:       NewBaseEvent(EventLessonExpired, userID, at),
		LessonID:        lessonID,
		ProgressPercent: progressPercent,
		ExpiredAt:       expiredAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityCompletedEvent is emitted the first time an activity is completed.
type ActivityCompletedEvent struct {
	BaseEvent
	ActivityID int `json:"activity_id"`
	Score      int `json:"score"`
	MaxScore   int `json:"max_score"`
	Percent    int `json:"percent"`
}

// Payload implements Event interface.
func (e ActivityCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"activity_id": e.ActivityID,
		"score":       e.Score,
		"max_score":   e.MaxScore,
		"percent":     e.Percent,
	}
}

// NewActivityCompletedEvent creates a new ActivityCompletedEvent.
func NewActivityCompletedEvent(userID string, activityID, score, maxScore, percent int, at time.Time) ActivityCompletedEvent {
	return ActivityCompletedEvent{
		BaseEvent:  NewBaseEvent(EventActivityCompleted, userID, at),
		ActivityID: activityID,
		Score:      score,
		MaxScore:   maxScore,
		Percent:    percent,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeAwardedEvent is emitted when a threshold crossing awards a badge.
type BadgeAwardedEvent struct {
	BaseEvent
	Badge        string `json:"badge"`
	Achievements int    `json:"achievements"`
}

// Payload implements Event interface.
func (e BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge":        e.Badge,
		"achievements": e.Achievements,
	}
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent.
func NewBadgeAwardedEvent(userID, badge string, achievements int, at time.Time) BadgeAwardedEvent {
	return BadgeAwardedEvent{
		BaseEvent:    NewBaseEvent(EventBadgeAwarded, userID, at),
		Badge:        badge,
		Achievements: achievements,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Events
// ═══════════════════════════════════════════════════════════════════════════

// NotificationAddedEvent is emitted when a notice lands in a learner's log.
type NotificationAddedEvent struct {
	BaseEvent
	NotificationID int64  `json:"notification_id"`
	Kind           string `json:"kind"`
	Title          string `json:"title"`
}

// Payload implements Event interface.
func (e NotificationAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": e.NotificationID,
		"kind":            e.Kind,
		"title":           e.Title,
	}
}

// NewNotificationAddedEvent creates a new NotificationAddedEvent.
func NewNotificationAddedEvent(userID string, id int64, kind, title string, at time.Time) NotificationAddedEvent {
	return NotificationAddedEvent{
		BaseEvent:      NewBaseEvent(EventNotificationAdded, userID, at),
		NotificationID: id,
		Kind:           kind,
		Title:          title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope serializes an event's payload into an envelope.
func NewEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Payload:     payload,
	}
	if ce, ok := event.(interface{ Correlation() string }); ok {
		env.CorrelationID = ce.Correlation()
	}
	return env, nil
}

// Correlation returns the correlation ID.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
