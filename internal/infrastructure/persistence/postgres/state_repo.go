package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StateRepository implements progress.Store on PostgreSQL.
type StateRepository struct {
	conn         *Connection
	queryTimeout time.Duration
}

// NewStateRepository creates the repository.
// A positive queryTimeout bounds every Load and Save.
func NewStateRepository(conn *Connection, queryTimeout time.Duration) *StateRepository {
	return &StateRepository{conn: conn, queryTimeout: queryTimeout}
}

func (r *StateRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// Load implements progress.Store.
func (r *StateRepository) Load(ctx context.Context, userID string) (*progress.State, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	st := progress.NewState(0)
	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT achievements, updated_at FROM learners WHERE user_id = $1`, userID,
		).Scan(&st.Achievements, &st.UpdatedAt)
		if err != nil {
			return err
		}
		if err := loadLessons(ctx, tx, userID, st); err != nil {
			return fmt.Errorf("load lessons: %w", err)
		}
		if err := loadActivities(ctx, tx, userID, st); err != nil {
			return fmt.Errorf("load activities: %w", err)
		}
		if err := loadNotifications(ctx, tx, userID, st); err != nil {
			return fmt.Errorf("load notifications: %w", err)
		}
		if err := loadRecent(ctx, tx, userID, st); err != nil {
			return fmt.Errorf("load recent activity: %w", err)
		}
		if err := loadBadges(ctx, tx, userID, st); err != nil {
			return fmt.Errorf("load badges: %w", err)
		}
		return nil
	})
	if IsNoRows(err) {
		return nil, shared.ErrStateNotFound
	}
	if err != nil {
		return nil, r.wrap("Load", err)
	}
	return st, nil
}

// Save implements progress.Store. The learner's rows are replaced in one transaction.
func (r *StateRepository) Save(ctx context.Context, userID string, st *progress.State) error {
	if st == nil {
		return shared.NewDomainError("postgres", "Save", shared.ErrInvalidInput, "state is nil")
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows := toRows(st)
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO learners (user_id, achievements, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE
			SET achievements = EXCLUDED.achievements, updated_at = EXCLUDED.updated_at`,
			userID, st.Achievements, st.UpdatedAt,
		)
		if err != nil {
			return err
		}

		for _, t := range childTables {
			if _, err := tx.Exec(ctx, "DELETE FROM "+t.name+" WHERE user_id = $1", userID); err != nil {
				return fmt.Errorf("clear %s: %w", t.name, err)
			}
			data := rows[t.name]
			if len(data) == 0 {
				continue
			}
			withUser := make([][]interface{}, len(data))
			for i, row := range data {
				withUser[i] = append([]interface{}{userID}, row...)
			}
			if _, err := tx.CopyFrom(ctx, pgx.Identifier{t.name}, t.columns, pgx.CopyFromRows(withUser)); err != nil {
				return fmt.Errorf("copy %s: %w", t.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return r.wrap("Save", err)
	}
	return nil
}

// Delete removes a learner and, by cascade, all their rows.
func (r *StateRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM learners WHERE user_id = $1`, userID)
	return err
}

// wrap marks transient failures retryable for pkg/retry.
func (r *StateRepository) wrap(op string, err error) error {
	if IsTransient(err) {
		return retry.Retryable(err)
	}
	return shared.WrapError("postgres", op, shared.ErrServiceUnavailable, "learner state query failed", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type childTable struct {
	name    string
	columns []string
}

// childTables lists per-learner tables; user_id is always the first column.
var childTables = []childTable{
	{"lesson_progress", []string{"user_id", "lesson_id", "started_at", "expires_at", "progress_percent", "completed", "completed_at"}},
	{"activity_scores", []string{"user_id", "activity_id", "score", "max_score", "due_at", "completed", "completed_at", "reminder_sent"}},
	{"notifications", []string{"user_id", "id", "type", "title", "message", "read", "created_at"}},
	{"recent_activity", []string{"user_id", "position", "kind", "item_id", "title", "score", "max_score", "percent", "occurred_at"}},
	{"badges", []string{"user_id", "name", "awarded_at"}},
}

// toRows flattens a state into rows per table, without the user_id column.
func toRows(st *progress.State) map[string][][]interface{} {
	out := make(map[string][][]interface{}, len(childTables))

	for _, id := range st.LessonIDs() {
		l := st.Lessons[id]
		out["lesson_progress"] = append(out["lesson_progress"], []interface{}{
			id.Int(), l.StartedAt, l.ExpiresAt, int16(l.ProgressPercent), l.Completed, l.CompletedAt,
		})
	}
	for id, a := range st.Activities {
		out["activity_scores"] = append(out["activity_scores"], []interface{}{
			id.Int(), a.Score, a.MaxScore, a.DueAt, a.Completed, a.CompletedAt, a.ReminderSent,
		})
	}
	for _, n := range st.Notifications {
		out["notifications"] = append(out["notifications"], []interface{}{
			n.ID, string(n.Type), n.Title, n.Message, n.Read, n.CreatedAt,
		})
	}
	for i, e := range st.Recent {
		out["recent_activity"] = append(out["recent_activity"], []interface{}{
			int16(i), string(e.Kind), e.ItemID, e.Title, e.Score, e.MaxScore, int16(e.Percent), e.At,
		})
	}
	for _, b := range st.Badges {
		out["badges"] = append(out["badges"], []interface{}{b.Name, b.AwardedAt})
	}
	return out
}

func loadLessons(ctx context.Context, tx pgx.Tx, userID string, st *progress.State) error {
	rows, err := tx.Query(ctx, `
		SELECT lesson_id, started_at, expires_at, progress_percent, completed, completed_at
		FROM lesson_progress WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int
			l       progress.LessonProgress
			percent int16
		)
		if err := rows.Scan(&id, &l.StartedAt, &l.ExpiresAt, &percent, &l.Completed, &l.CompletedAt); err != nil {
			return err
		}
		l.LessonID = catalog.LessonID(id)
		l.ProgressPercent = int(percent)
		st.Lessons[l.LessonID] = l
	}
	return rows.Err()
}

func loadActivities(ctx context.Context, tx pgx.Tx, userID string, st *progress.State) error {
	rows, err := tx.Query(ctx, `
		SELECT activity_id, score, max_score, due_at, completed, completed_at, reminder_sent
		FROM activity_scores WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int
			a  progress.ActivityScore
		)
		if err := rows.Scan(&id, &a.Score, &a.MaxScore, &a.DueAt, &a.Completed, &a.CompletedAt, &a.ReminderSent); err != nil {
			return err
		}
		a.ActivityID = catalog.ActivityID(id)
		st.Activities[a.ActivityID] = a
	}
	return rows.Err()
}

func loadNotifications(ctx context.Context, tx pgx.Tx, userID string, st *progress.State) error {
	rows, err := tx.Query(ctx, `
		SELECT id, type, title, message, read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			n    notification.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &kind, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return err
		}
		n.Type = notification.Type(kind)
		st.Notifications = append(st.Notifications, n)
	}
	return rows.Err()
}

func loadRecent(ctx context.Context, tx pgx.Tx, userID string, st *progress.State) error {
	rows, err := tx.Query(ctx, `
		SELECT kind, item_id, title, score, max_score, percent, occurred_at
		FROM recent_activity WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       progress.RecentEntry
			kind    string
			percent int16
		)
		if err := rows.Scan(&kind, &e.ItemID, &e.Title, &e.Score, &e.MaxScore, &percent, &e.At); err != nil {
			return err
		}
		e.Kind = progress.RecentKind(kind)
		e.Percent = int(percent)
		st.Recent = append(st.Recent, e)
	}
	return rows.Err()
}

func loadBadges(ctx context.Context, tx pgx.Tx, userID string, st *progress.State) error {
	rows, err := tx.Query(ctx, `
		SELECT name, awarded_at FROM badges WHERE user_id = $1 ORDER BY awarded_at, name`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var b progress.Badge
		if err := rows.Scan(&b.Name, &b.AwardedAt); err != nil {
			return err
		}
		st.Badges = append(st.Badges, b)
	}
	return rows.Err()
}
