package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository (только чтение)
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetDisplayNames возвращает имена существующих пользователей. Удалённые не попадают в результат.
func (r *UserRepo) GetDisplayNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []entity.User
	err := r.db.WithContext(ctx).
		Select("id", "username", "display_name").
		Where("id IN ? AND deleted_at IS NULL", ids).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	for i := range users {
		names[users[i].ID] = users[i].Name()
	}
	return names, nil
}

// ListEligibleIDs возвращает ID не удалённых пользователей с ролью user
func (r *UserRepo) ListEligibleIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("role = ? AND deleted_at IS NULL", entity.UserRoleUser).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
