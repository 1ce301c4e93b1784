package repository

import (
	"context"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// ContestFilters определяет фильтры для списка конкурсов
type ContestFilters struct {
	Status  string // pending, active, completed; пусто - все
	Variant string
}

// RoundCommit содержит все изменения одного раунда. Репозиторий применяет их атомарно:
// либо всё, либо ничего.
type RoundCommit struct {
	ContestID uint
	// ExpectedRound - значение current_round, прочитанное перед вычислением раунда.
	// Фиксация выполняется только если в хранилище всё ещё это значение.
	ExpectedRound int

	Round *entity.Round

	EliminatedParticipantIDs []uint
	WinnerParticipantIDs     []uint
	WinnerSubjectIDs         []uint

	// StartedAt заполняется для первого раунда (pending -> active)
	StartedAt *time.Time
	// CompletedAt заполняется для финального раунда (active -> completed)
	CompletedAt *time.Time
}

// NextStatus возвращает статус конкурса после фиксации
func (c *RoundCommit) NextStatus() string {
	if c.CompletedAt != nil {
		return entity.ContestStatusCompleted
	}
	return entity.ContestStatusActive
}

// ContestRepository определяет методы для работы с конкурсами
type ContestRepository interface {
	Create(ctx context.Context, contest *entity.Contest) error
	GetByID(ctx context.Context, id uint) (*entity.Contest, error)
	// GetLatestOpen возвращает последний созданный конкурс в статусе pending или active
	GetLatestOpen(ctx context.Context) (*entity.Contest, error)
	// ListExpiredAutoAdvance возвращает конкурсы pending/active с auto_advance и registration_end < now
	ListExpiredAutoAdvance(ctx context.Context, now time.Time) ([]entity.Contest, error)
	ListWithFilters(ctx context.Context, filters ContestFilters, limit, offset int) ([]entity.Contest, int64, error)
	// ListCompleted возвращает завершённые конкурсы, новые первыми
	ListCompleted(ctx context.Context, limit, offset int) ([]entity.Contest, int64, error)
	UpdateTotalParticipants(ctx context.Context, contestID uint, total int) error
	// CommitRound атомарно применяет раунд. ErrRoundConflict, если current_round изменился.
	CommitRound(ctx context.Context, commit *RoundCommit) error
	// ForceComplete переводит незавершённый конкурс в completed без нового раунда.
	// ErrContestAlreadyCompleted, если конкурс уже завершён.
	ForceComplete(ctx context.Context, contestID uint, completedAt time.Time) error
	// Delete удаляет конкурс вместе с раундами и участниками
	Delete(ctx context.Context, contestID uint) error
	// DeleteCompleted удаляет все завершённые конкурсы с их данными, возвращает количество
	DeleteCompleted(ctx context.Context) (int64, error)
}
