package repository

import (
	"context"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// RoundRepository определяет методы чтения истории раундов.
// Записи раундов создаются только через ContestRepository.CommitRound.
type RoundRepository interface {
	// ListByContest возвращает раунды конкурса, упорядоченные по номеру
	ListByContest(ctx context.Context, contestID uint) ([]entity.Round, error)
	GetByNumber(ctx context.Context, contestID uint, roundNumber int) (*entity.Round, error)
}
