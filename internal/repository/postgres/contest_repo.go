package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// ContestRepo реализует repository.ContestRepository
type ContestRepo struct {
	db *gorm.DB
}

// NewContestRepo создает новый репозиторий конкурсов
func NewContestRepo(db *gorm.DB) *ContestRepo {
	return &ContestRepo{db: db}
}

// Create создает новый конкурс
func (r *ContestRepo) Create(ctx context.Context, contest *entity.Contest) error {
	if contest.WinnerIDs == nil {
		contest.WinnerIDs = entity.IDList{}
	}
	return r.db.WithContext(ctx).Create(contest).Error
}

// GetByID возвращает конкурс по ID
func (r *ContestRepo) GetByID(ctx context.Context, id uint) (*entity.Contest, error) {
	var contest entity.Contest
	err := r.db.WithContext(ctx).First(&contest, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &contest, nil
}

// GetLatestOpen возвращает последний созданный незавершённый конкурс
func (r *ContestRepo) GetLatestOpen(ctx context.Context) (*entity.Contest, error) {
	var contest entity.Contest
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{entity.ContestStatusPending, entity.ContestStatusActive}).
		Order("created_at DESC, id DESC").
		First(&contest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &contest, nil
}

// ListExpiredAutoAdvance возвращает конкурсы, которые планировщик должен довести до конца
func (r *ContestRepo) ListExpiredAutoAdvance(ctx context.Context, now time.Time) ([]entity.Contest, error) {
	var contests []entity.Contest
	err := r.db.WithContext(ctx).
		Where("status IN ? AND auto_advance = ? AND registration_end < ?",
			[]string{entity.ContestStatusPending, entity.ContestStatusActive}, true, now).
		Order("registration_end").
		Find(&contests).Error
	if err != nil {
		return nil, err
	}
	return contests, nil
}

// ListWithFilters возвращает список конкурсов с фильтрами и total count
func (r *ContestRepo) ListWithFilters(ctx context.Context, filters repository.ContestFilters, limit, offset int) ([]entity.Contest, int64, error) {
	var contests []entity.Contest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Contest{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Variant != "" {
		query = query.Where("variant = ?", filters.Variant)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).Order("id DESC").Find(&contests).Error
	if err != nil {
		return nil, 0, err
	}
	return contests, total, nil
}

// ListCompleted возвращает завершённые конкурсы, новые первыми
func (r *ContestRepo) ListCompleted(ctx context.Context, limit, offset int) ([]entity.Contest, int64, error) {
	var contests []entity.Contest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Contest{}).Where("status = ?", entity.ContestStatusCompleted)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).Order("completed_at DESC, id DESC").Find(&contests).Error
	if err != nil {
		return nil, 0, err
	}
	return contests, total, nil
}

// UpdateTotalParticipants точечно обновляет количество участников
func (r *ContestRepo) UpdateTotalParticipants(ctx context.Context, contestID uint, total int) error {
	return r.db.WithContext(ctx).Model(&entity.Contest{}).
		Where("id = ?", contestID).
		Update("total_participants", total).
		Error
}

// CommitRound атомарно применяет раунд в одной транзакции:
//   - условное обновление конкурса (только если current_round = ExpectedRound и конкурс не завершён)
//   - выбывание и победа участников (только тех, кто ещё active)
//   - создание записи раунда (unique contest_id + round_number)
//
// Любое расхождение откатывает транзакцию и возвращает repository.ErrRoundConflict.
func (r *ContestRepo) CommitRound(ctx context.Context, commit *repository.RoundCommit) error {
	if commit == nil || commit.Round == nil {
		return fmt.Errorf("%w: empty round commit", apperrors.ErrValidation)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"current_round": commit.Round.RoundNumber,
			"status":        commit.NextStatus(),
		}
		if commit.StartedAt != nil {
			updates["started_at"] = *commit.StartedAt
		}
		if commit.CompletedAt != nil {
			updates["completed_at"] = *commit.CompletedAt
			updates["winner_ids"] = entity.IDList(commit.WinnerSubjectIDs)
		}

		result := tx.Model(&entity.Contest{}).
			Where("id = ? AND current_round = ? AND status <> ?",
				commit.ContestID, commit.ExpectedRound, entity.ContestStatusCompleted).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("advance contest #%d failed: %w", commit.ContestID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: contest #%d round %d", repository.ErrRoundConflict, commit.ContestID, commit.Round.RoundNumber)
		}

		if len(commit.EliminatedParticipantIDs) > 0 {
			round := commit.Round.RoundNumber
			result = tx.Model(&entity.Participant{}).
				Where("id IN ? AND contest_id = ? AND status = ?",
					commit.EliminatedParticipantIDs, commit.ContestID, entity.ParticipantStatusActive).
				Updates(map[string]interface{}{
					"status":              entity.ParticipantStatusEliminated,
					"eliminated_in_round": round,
					"eliminated_at":       commit.Round.ExecutedAt,
				})
			if result.Error != nil {
				return fmt.Errorf("eliminate participants of contest #%d failed: %w", commit.ContestID, result.Error)
			}
			if result.RowsAffected != int64(len(commit.EliminatedParticipantIDs)) {
				return fmt.Errorf("%w: contest #%d eliminated %d of %d participants",
					repository.ErrRoundConflict, commit.ContestID, result.RowsAffected, len(commit.EliminatedParticipantIDs))
			}
		}

		if len(commit.WinnerParticipantIDs) > 0 {
			result = tx.Model(&entity.Participant{}).
				Where("id IN ? AND contest_id = ? AND status = ?",
					commit.WinnerParticipantIDs, commit.ContestID, entity.ParticipantStatusActive).
				Update("status", entity.ParticipantStatusWinner)
			if result.Error != nil {
				return fmt.Errorf("mark winners of contest #%d failed: %w", commit.ContestID, result.Error)
			}
			if result.RowsAffected != int64(len(commit.WinnerParticipantIDs)) {
				return fmt.Errorf("%w: contest #%d marked %d of %d winners",
					repository.ErrRoundConflict, commit.ContestID, result.RowsAffected, len(commit.WinnerParticipantIDs))
			}
		}

		if commit.Round.EliminatedSubjectIDs == nil {
			commit.Round.EliminatedSubjectIDs = entity.IDList{}
		}
		if commit.Round.WinnerSubjectIDs == nil {
			commit.Round.WinnerSubjectIDs = entity.IDList{}
		}
		if err := tx.Create(commit.Round).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: contest #%d round %d", repository.ErrRoundConflict, commit.ContestID, commit.Round.RoundNumber)
			}
			return fmt.Errorf("create round %d of contest #%d failed: %w", commit.Round.RoundNumber, commit.ContestID, err)
		}

		return nil
	})
}

// ForceComplete переводит незавершённый конкурс в completed без выполнения раунда
func (r *ContestRepo) ForceComplete(ctx context.Context, contestID uint, completedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&entity.Contest{}).
		Where("id = ? AND status <> ?", contestID, entity.ContestStatusCompleted).
		Updates(map[string]interface{}{
			"status":       entity.ContestStatusCompleted,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("force complete contest #%d failed: %w", contestID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Различаем "нет такого конкурса" и "уже завершён"
		if _, err := r.GetByID(ctx, contestID); err != nil {
			return err
		}
		return fmt.Errorf("%w: contest #%d", repository.ErrContestAlreadyCompleted, contestID)
	}
	return nil
}

// Delete удаляет конкурс вместе с раундами и участниками
func (r *ContestRepo) Delete(ctx context.Context, contestID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contest_id = ?", contestID).Delete(&entity.Round{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ?", contestID).Delete(&entity.Participant{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.Contest{}, contestID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// DeleteCompleted удаляет все завершённые конкурсы с их данными
func (r *ContestRepo) DeleteCompleted(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&entity.Contest{}).
			Where("status = ?", entity.ContestStatusCompleted).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("contest_id IN ?", ids).Delete(&entity.Round{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id IN ?", ids).Delete(&entity.Participant{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&entity.Contest{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
