// Package notification содержит доменную модель уведомлений EduAid.
// Уведомления создаются переходами состояния уроков и активностей,
// хранятся в журнале (новые сверху) и никогда не удаляются.
package notification

import (
	"time"

	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тон уведомления.
type Type string

const (
	// TypeInfo - нейтральная информация ("Lesson Started").
	TypeInfo Type = "info"

	// TypeSuccess - успех: сохранение прогресса, завершение, бейдж.
	TypeSuccess Type = "success"

	// TypeWarning - предупреждение: урок истёк.
	TypeWarning Type = "warning"

	// TypeAssignment - напоминание о задании со сроком.
	TypeAssignment Type = "assignment"
)

// IsValid проверяет корректность типа.
func (t Type) IsValid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeAssignment:
		return true
	}
	return false
}

// String возвращает строковое представление типа.
func (t Type) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTICE
// ══════════════════════════════════════════════════════════════════════════════

// Notice - намерение создать уведомление. Его порождает трекер прогресса,
// а сессия превращает в Notification сразу или по истечении Delay.
type Notice struct {
	Type    Type
	Title   string
	Message string

	// Delay > 0 означает отложенную доставку (тост после анимации).
	Delay time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// JustNow - отображаемое время только что созданного уведомления.
const JustNow = "Just now"

// Notification - запись журнала уведомлений.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Time      string    `json:"time"`
	Read      bool      `json:"read"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// New создаёт непрочитанное уведомление из Notice.
func New(id int64, n Notice, at time.Time) Notification {
	return Notification{
		ID:        id,
		Title:     n.Title,
		Message:   n.Message,
		Time:      JustNow,
		Read:      false,
		Type:      n.Type,
		CreatedAt: at,
	}
}

// WithRelativeTime возвращает копию с отображаемым временем относительно now.
func (n Notification) WithRelativeTime(now time.Time) Notification {
	if !n.CreatedAt.IsZero() {
		n.Time = timeutil.FormatRelative(now, n.CreatedAt)
	}
	return n
}
