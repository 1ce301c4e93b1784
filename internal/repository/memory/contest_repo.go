package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// ContestRepo реализует repository.ContestRepository в памяти
type ContestRepo struct {
	store *Store
}

func (r *ContestRepo) Create(_ context.Context, contest *entity.Contest) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextContestID++
	now := s.now()
	contest.ID = s.nextContestID
	if contest.Status == "" {
		contest.Status = entity.ContestStatusPending
	}
	if contest.WinnerIDs == nil {
		contest.WinnerIDs = entity.IDList{}
	}
	contest.CreatedAt = now
	contest.UpdatedAt = now
	s.contests[contest.ID] = cloneContest(*contest)
	return nil
}

func (r *ContestRepo) GetByID(_ context.Context, id uint) (*entity.Contest, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	contest, ok := s.contests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := cloneContest(contest)
	return &out, nil
}

func (r *ContestRepo) GetLatestOpen(_ context.Context) (*entity.Contest, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entity.Contest
	for _, c := range s.contests {
		if c.IsCompleted() {
			continue
		}
		if latest == nil || c.ID > latest.ID {
			c := c
			latest = &c
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	out := cloneContest(*latest)
	return &out, nil
}

func (r *ContestRepo) ListExpiredAutoAdvance(_ context.Context, now time.Time) ([]entity.Contest, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Contest, 0)
	for _, c := range s.contests {
		if c.EligibleForAutoAdvance(now) {
			out = append(out, cloneContest(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationEnd.Before(out[j].RegistrationEnd) })
	return out, nil
}

func (r *ContestRepo) ListWithFilters(_ context.Context, filters repository.ContestFilters, limit, offset int) ([]entity.Contest, int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Contest, 0)
	for _, c := range s.contests {
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if filters.Variant != "" && c.Variant != filters.Variant {
			continue
		}
		out = append(out, cloneContest(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), int64(len(out)), nil
}

func (r *ContestRepo) ListCompleted(_ context.Context, limit, offset int) ([]entity.Contest, int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Contest, 0)
	for _, c := range s.contests {
		if c.IsCompleted() {
			out = append(out, cloneContest(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CompletedAt, out[j].CompletedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.After(*b)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, limit, offset), int64(len(out)), nil
}

func (r *ContestRepo) UpdateTotalParticipants(_ context.Context, contestID uint, total int) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	contest, ok := s.contests[contestID]
	if !ok {
		return apperrors.ErrNotFound
	}
	contest.TotalParticipants = total
	contest.UpdatedAt = s.now()
	s.contests[contestID] = contest
	return nil
}

// CommitRound проверяет все условия до любой записи, поэтому частичного применения не бывает
func (r *ContestRepo) CommitRound(_ context.Context, commit *repository.RoundCommit) error {
	if commit == nil || commit.Round == nil {
		return fmt.Errorf("%w: empty round commit", apperrors.ErrValidation)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	contest, ok := s.contests[commit.ContestID]
	if !ok || contest.CurrentRound != commit.ExpectedRound || contest.IsCompleted() {
		return fmt.Errorf("%w: contest #%d round %d", repository.ErrRoundConflict, commit.ContestID, commit.Round.RoundNumber)
	}
	for _, round := range s.rounds {
		if round.ContestID == commit.ContestID && round.RoundNumber == commit.Round.RoundNumber {
			return fmt.Errorf("%w: contest #%d round %d", repository.ErrRoundConflict, commit.ContestID, commit.Round.RoundNumber)
		}
	}
	for _, ids := range [][]uint{commit.EliminatedParticipantIDs, commit.WinnerParticipantIDs} {
		for _, id := range ids {
			p, ok := s.participants[id]
			if !ok || p.ContestID != commit.ContestID || !p.IsActive() {
				return fmt.Errorf("%w: participant #%d of contest #%d is not active",
					repository.ErrRoundConflict, id, commit.ContestID)
			}
		}
	}

	now := s.now()
	roundNumber := commit.Round.RoundNumber
	for _, id := range commit.EliminatedParticipantIDs {
		p := s.participants[id]
		round := roundNumber
		eliminatedAt := commit.Round.ExecutedAt
		p.Status = entity.ParticipantStatusEliminated
		p.EliminatedInRound = &round
		p.EliminatedAt = &eliminatedAt
		p.UpdatedAt = now
		s.participants[id] = p
	}
	for _, id := range commit.WinnerParticipantIDs {
		p := s.participants[id]
		p.Status = entity.ParticipantStatusWinner
		p.UpdatedAt = now
		s.participants[id] = p
	}

	contest.CurrentRound = roundNumber
	contest.Status = commit.NextStatus()
	if commit.StartedAt != nil {
		startedAt := *commit.StartedAt
		contest.StartedAt = &startedAt
	}
	if commit.CompletedAt != nil {
		completedAt := *commit.CompletedAt
		contest.CompletedAt = &completedAt
		contest.WinnerIDs = cloneIDs(commit.WinnerSubjectIDs)
	}
	contest.UpdatedAt = now
	s.contests[contest.ID] = contest

	s.nextRoundID++
	commit.Round.ID = s.nextRoundID
	commit.Round.CreatedAt = now
	if commit.Round.EliminatedSubjectIDs == nil {
		commit.Round.EliminatedSubjectIDs = entity.IDList{}
	}
	if commit.Round.WinnerSubjectIDs == nil {
		commit.Round.WinnerSubjectIDs = entity.IDList{}
	}
	s.rounds[commit.Round.ID] = cloneRound(*commit.Round)
	return nil
}

func (r *ContestRepo) ForceComplete(_ context.Context, contestID uint, completedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	contest, ok := s.contests[contestID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if contest.IsCompleted() {
		return fmt.Errorf("%w: contest #%d", repository.ErrContestAlreadyCompleted, contestID)
	}
	contest.Status = entity.ContestStatusCompleted
	contest.CompletedAt = &completedAt
	contest.UpdatedAt = s.now()
	s.contests[contestID] = contest
	return nil
}

func (r *ContestRepo) Delete(_ context.Context, contestID uint) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[contestID]; !ok {
		return apperrors.ErrNotFound
	}
	s.deleteContestLocked(contestID)
	return nil
}

func (r *ContestRepo) DeleteCompleted(_ context.Context) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, c := range s.contests {
		if c.IsCompleted() {
			s.deleteContestLocked(id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) deleteContestLocked(contestID uint) {
	delete(s.contests, contestID)
	for id, p := range s.participants {
		if p.ContestID == contestID {
			delete(s.participants, id)
		}
	}
	for id, round := range s.rounds {
		if round.ContestID == contestID {
			delete(s.rounds, id)
		}
	}
}
