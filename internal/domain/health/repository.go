package health

import "context"

// HistoryRepository хранит скользящую историю дневных метрик пользователя
// (не больше HistoryRetentionDays дней).
type HistoryRepository interface {
	Load(ctx context.Context, userID string) ([]DailyMetrics, error)
	Save(ctx context.Context, userID string, history []DailyMetrics) error
	Delete(ctx context.Context, userID string) error
}

// UserDirectory - реестр известных пользователей. Используется
// еженедельной ротацией вызовов.
type UserDirectory interface {
	Add(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
	List(ctx context.Context) ([]string, error)
}
