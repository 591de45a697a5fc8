package streak

import "context"

// Repository хранит счётчики серии и историю дней раздельно, чтобы
// повреждение одного blob-а не лишало возможности восстановления.
//
// Load возвращает shared.ErrNotFound или shared.ErrCorrupted для счётчиков;
// история при этом не подгружается и читается через LoadHistory.
type Repository interface {
	Load(ctx context.Context, userID string) (*State, error)
	LoadHistory(ctx context.Context, userID string) ([]DayRecord, error)
	Save(ctx context.Context, userID string, state *State) error
	Delete(ctx context.Context, userID string) error
}
