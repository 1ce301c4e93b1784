package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// RoundRepo реализует repository.RoundRepository
type RoundRepo struct {
	db *gorm.DB
}

// NewRoundRepo создает новый репозиторий раундов
func NewRoundRepo(db *gorm.DB) *RoundRepo {
	return &RoundRepo{db: db}
}

// ListByContest возвращает раунды конкурса по возрастанию номера
func (r *RoundRepo) ListByContest(ctx context.Context, contestID uint) ([]entity.Round, error) {
	var rounds []entity.Round
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("round_number").
		Find(&rounds).Error
	if err != nil {
		return nil, err
	}
	return rounds, nil
}

// GetByNumber возвращает раунд конкурса по номеру
func (r *RoundRepo) GetByNumber(ctx context.Context, contestID uint, roundNumber int) (*entity.Round, error) {
	var round entity.Round
	err := r.db.WithContext(ctx).
		Where("contest_id = ? AND round_number = ?", contestID, roundNumber).
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &round, nil
}
