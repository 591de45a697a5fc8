package achievement

import "context"

// Repository хранит пользовательское состояние достижений.
// Реализуется слоем инфраструктуры поверх key-value хранилища.
//
// Load возвращает shared.ErrNotFound, если состояния ещё нет, и
// shared.ErrCorrupted, если сохранённый blob не прошёл проверку.
type Repository interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, userID string, state *State) error
	Delete(ctx context.Context, userID string) error
}
