package memory

import (
	"context"
	"sort"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository в памяти
type UserRepo struct {
	store *Store
}

func (r *UserRepo) GetByID(_ context.Context, id uint) (*entity.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepo) GetDisplayNames(_ context.Context, ids []uint) (map[uint]string, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[uint]string, len(ids))
	for _, id := range ids {
		user, ok := s.users[id]
		if !ok || user.IsDeleted() {
			continue
		}
		names[id] = user.Name()
	}
	return names, nil
}

func (r *UserRepo) ListEligibleIDs(_ context.Context) ([]uint, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint, 0, len(s.users))
	for _, user := range s.users {
		if user.Role == entity.UserRoleUser && !user.IsDeleted() {
			ids = append(ids, user.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
