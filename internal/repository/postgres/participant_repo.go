package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// registerBatchSize ограничивает размер одного INSERT при регистрации
const registerBatchSize = 500

// ParticipantRepo реализует repository.ParticipantRepository
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo создает новый репозиторий участников
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// RegisterBatch регистрирует участников, уже зарегистрированные пропускаются (ON CONFLICT DO NOTHING)
func (r *ParticipantRepo) RegisterBatch(ctx context.Context, contestID uint, subjectIDs []uint) (int, error) {
	if len(subjectIDs) == 0 {
		return 0, nil
	}

	seen := make(map[uint]struct{}, len(subjectIDs))
	participants := make([]entity.Participant, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		if _, ok := seen[subjectID]; ok {
			continue
		}
		seen[subjectID] = struct{}{}
		participants = append(participants, entity.Participant{
			ContestID: contestID,
			SubjectID: subjectID,
			Status:    entity.ParticipantStatusActive,
		})
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&participants, registerBatchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// ListActive возвращает активных участников конкурса
func (r *ParticipantRepo) ListActive(ctx context.Context, contestID uint) ([]entity.Participant, error) {
	return r.ListByStatus(ctx, contestID, entity.ParticipantStatusActive)
}

// ListByStatus возвращает участников конкурса с указанным статусом
func (r *ParticipantRepo) ListByStatus(ctx context.Context, contestID uint, status string) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.WithContext(ctx).
		Where("contest_id = ? AND status = ?", contestID, status).
		Order("id").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// List возвращает страницу участников конкурса и общее количество
func (r *ParticipantRepo) List(ctx context.Context, contestID uint, limit, offset int) ([]entity.Participant, int64, error) {
	var participants []entity.Participant
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Participant{}).Where("contest_id = ?", contestID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id").Limit(limit).Offset(offset).Find(&participants).Error
	if err != nil {
		return nil, 0, err
	}
	return participants, total, nil
}

// GetBySubject возвращает участника конкурса по идентификатору пользователя
func (r *ParticipantRepo) GetBySubject(ctx context.Context, contestID, subjectID uint) (*entity.Participant, error) {
	var participant entity.Participant
	err := r.db.WithContext(ctx).
		Where("contest_id = ? AND subject_id = ?", contestID, subjectID).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &participant, nil
}

// CountByStatus считает участников конкурса с указанным статусом
func (r *ParticipantRepo) CountByStatus(ctx context.Context, contestID uint, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Participant{}).
		Where("contest_id = ? AND status = ?", contestID, status).
		Count(&count).Error
	return count, err
}

// Count считает всех участников конкурса
func (r *ParticipantRepo) Count(ctx context.Context, contestID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Participant{}).
		Where("contest_id = ?", contestID).
		Count(&count).Error
	return count, err
}
