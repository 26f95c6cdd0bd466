// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"math"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a learner. It is issued by the auth collaborator.
type UserID string

// Usernames, emails and UUIDs all fit.
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.@+-]{0,127}$`)

// IsValid checks if the user ID is valid.
func (u UserID) IsValid() bool {
	return userIDRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percent Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percent is an integer percentage.
type Percent int

const (
	MinPercent Percent = 0
	MaxPercent Percent = 100
)

// Cap limits the value to MaxPercent. Lower values pass through unchanged.
func (p Percent) Cap() Percent {
	if p > MaxPercent {
		return MaxPercent
	}
	return p
}

// Int returns the underlying int value.
func (p Percent) Int() int {
	return int(p)
}

// RoundPercent converts a fraction to the nearest whole percent, halves up.
func RoundPercent(part, whole float64) Percent {
	if whole == 0 {
		return 0
	}
	return Percent(math.Floor(part/whole*100 + 0.5))
}

// RoundMean returns the mean of values rounded to the nearest whole number, halves up.
func RoundMean(values []float64) Percent {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Percent(math.Floor(sum/float64(len(values)) + 0.5))
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset of the first item.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the page size.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// Slice returns the bounds of the page within n items.
func (p Pagination) Slice(n int) (start, end int) {
	start = p.Offset()
	if start > n {
		start = n
	}
	end = start + p.Limit()
	if end > n {
		end = n
	}
	return start, end
}
