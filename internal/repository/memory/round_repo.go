package memory

import (
	"context"
	"sort"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// RoundRepo реализует repository.RoundRepository в памяти
type RoundRepo struct {
	store *Store
}

func (r *RoundRepo) ListByContest(_ context.Context, contestID uint) ([]entity.Round, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Round, 0)
	for _, round := range s.rounds {
		if round.ContestID == contestID {
			out = append(out, cloneRound(round))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *RoundRepo) GetByNumber(_ context.Context, contestID uint, roundNumber int) (*entity.Round, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, round := range s.rounds {
		if round.ContestID == contestID && round.RoundNumber == roundNumber {
			out := cloneRound(round)
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}
