package memory

import (
	"context"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// ParticipantRepo реализует repository.ParticipantRepository в памяти
type ParticipantRepo struct {
	store *Store
}

func (r *ParticipantRepo) RegisterBatch(_ context.Context, contestID uint, subjectIDs []uint) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[contestID]; !ok {
		return 0, apperrors.ErrNotFound
	}

	registered := make(map[uint]struct{})
	for _, p := range s.participants {
		if p.ContestID == contestID {
			registered[p.SubjectID] = struct{}{}
		}
	}

	now := s.now()
	created := 0
	for _, subjectID := range subjectIDs {
		if _, ok := registered[subjectID]; ok {
			continue
		}
		registered[subjectID] = struct{}{}
		s.nextParticipantID++
		s.participants[s.nextParticipantID] = entity.Participant{
			ID:        s.nextParticipantID,
			ContestID: contestID,
			SubjectID: subjectID,
			Status:    entity.ParticipantStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		created++
	}
	return created, nil
}

func (r *ParticipantRepo) ListActive(ctx context.Context, contestID uint) ([]entity.Participant, error) {
	return r.ListByStatus(ctx, contestID, entity.ParticipantStatusActive)
}

func (r *ParticipantRepo) ListByStatus(_ context.Context, contestID uint, status string) ([]entity.Participant, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Participant, 0)
	for _, p := range s.participantsOf(contestID) {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ParticipantRepo) List(_ context.Context, contestID uint, limit, offset int) ([]entity.Participant, int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.participantsOf(contestID)
	return paginate(all, limit, offset), int64(len(all)), nil
}

func (r *ParticipantRepo) GetBySubject(_ context.Context, contestID, subjectID uint) (*entity.Participant, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.participants {
		if p.ContestID == contestID && p.SubjectID == subjectID {
			out := p
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *ParticipantRepo) CountByStatus(_ context.Context, contestID uint, status string) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, p := range s.participants {
		if p.ContestID == contestID && p.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *ParticipantRepo) Count(_ context.Context, contestID uint) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, p := range s.participants {
		if p.ContestID == contestID {
			count++
		}
	}
	return count, nil
}
