package progress

import "context"

// Store - хранилище состояния прогресса учеников.
// Реализации находятся в infrastructure/persistence.
type Store interface {
	// Load возвращает сохранённое состояние.
	// Если состояния нет - shared.ErrStateNotFound.
	Load(ctx context.Context, userID string) (*State, error)

	// Save полностью заменяет сохранённое состояние ученика.
	Save(ctx context.Context, userID string, st *State) error
}
