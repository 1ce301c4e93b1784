package repository

import (
	"context"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// UserRepository - поставщик идентичностей участников (только чтение)
type UserRepository interface {
	// GetDisplayNames возвращает имена для существующих (не удалённых) пользователей.
	// Отсутствующие идентификаторы просто не попадают в результат.
	GetDisplayNames(ctx context.Context, ids []uint) (map[uint]string, error)
	// ListEligibleIDs возвращает ID не удалённых пользователей с ролью user
	ListEligibleIDs(ctx context.Context) ([]uint, error)
	GetByID(ctx context.Context, id uint) (*entity.User, error)
}
