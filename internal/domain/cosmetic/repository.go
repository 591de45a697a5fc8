package cosmetic

import "context"

// Repository хранит инвентарь пользователя.
type Repository interface {
	Load(ctx context.Context, userID string) (*Inventory, error)
	Save(ctx context.Context, userID string, inv *Inventory) error
	Delete(ctx context.Context, userID string) error
}
