package repository

import (
	"context"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// ParticipantRepository определяет методы для работы с ростером конкурса
type ParticipantRepository interface {
	// RegisterBatch регистрирует subject'ов в конкурсе, пропуская уже зарегистрированных.
	// Возвращает количество созданных записей.
	RegisterBatch(ctx context.Context, contestID uint, subjectIDs []uint) (int, error)
	ListActive(ctx context.Context, contestID uint) ([]entity.Participant, error)
	ListByStatus(ctx context.Context, contestID uint, status string) ([]entity.Participant, error)
	List(ctx context.Context, contestID uint, limit, offset int) ([]entity.Participant, int64, error)
	GetBySubject(ctx context.Context, contestID, subjectID uint) (*entity.Participant, error)
	CountByStatus(ctx context.Context, contestID uint, status string) (int64, error)
	Count(ctx context.Context, contestID uint) (int64, error)
}
