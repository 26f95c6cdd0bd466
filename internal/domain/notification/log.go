package notification

import (
	"math/rand"
	"sync"
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG
// ══════════════════════════════════════════════════════════════════════════════

// Log - журнал уведомлений, новые записи в начале.
// Записи не удаляются, меняется только флаг Read.
type Log []Notification

// Add добавляет запись в начало журнала. Дедупликации нет.
func (l *Log) Add(n Notification) {
	*l = append(Log{n}, *l...)
}

// MarkRead помечает запись прочитанной.
func (l Log) MarkRead(id int64) error {
	for i := range l {
		if l[i].ID == id {
			l[i].Read = true
			return nil
		}
	}
	return shared.ErrNotificationNotFound
}

// MarkAllRead помечает все записи прочитанными и возвращает число изменённых.
func (l Log) MarkAllRead() int {
	changed := 0
	for i := range l {
		if !l[i].Read {
			l[i].Read = true
			changed++
		}
	}
	return changed
}

// UnreadCount возвращает число непрочитанных записей.
func (l Log) UnreadCount() int {
	n := 0
	for _, item := range l {
		if !item.Read {
			n++
		}
	}
	return n
}

// Find ищет запись по ID.
func (l Log) Find(id int64) (Notification, bool) {
	for _, item := range l {
		if item.ID == id {
			return item, true
		}
	}
	return Notification{}, false
}

// MaxID возвращает наибольший ID в журнале (0 для пустого).
func (l Log) MaxID() int64 {
	var max int64
	for _, item := range l {
		if item.ID > max {
			max = item.ID
		}
	}
	return max
}

// View возвращает копию журнала с относительным временем отображения.
func (l Log) View(now time.Time) []Notification {
	out := make([]Notification, len(l))
	for i, item := range l {
		out[i] = item.WithRelativeTime(now)
	}
	return out
}

// Clone возвращает независимую копию журнала.
func (l Log) Clone() Log {
	if l == nil {
		return nil
	}
	return append(Log(nil), l...)
}

// ══════════════════════════════════════════════════════════════════════════════
// ID SEQUENCE
// ══════════════════════════════════════════════════════════════════════════════

// Sequence выдаёт ID уведомлений: миллисекунды * 1000 + случайное смещение 0..999.
// ID строго возрастают в пределах последовательности даже при одинаковом времени.
type Sequence struct {
	mu   sync.Mutex
	last int64
	rnd  *rand.Rand
}

// NewSequence создаёт последовательность, которая продолжится после last.
func NewSequence(last int64) *Sequence {
	return &Sequence{
		last: last,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next возвращает следующий ID для момента now.
func (s *Sequence) Next(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := now.UnixMilli()*1000 + s.rnd.Int63n(1000)
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

