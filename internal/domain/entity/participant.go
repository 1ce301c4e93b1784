package entity

import (
	"time"
)

// Константы статусов участника. Статус меняется только вперёд: active -> eliminated | winner.
const (
	ParticipantStatusActive     = "active"
	ParticipantStatusEliminated = "eliminated"
	ParticipantStatusWinner     = "winner"
)

// Participant связывает внешнего пользователя (subject) с конкурсом
type Participant struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	ContestID         uint       `gorm:"not null;uniqueIndex:idx_participant_contest_subject;index:idx_participant_contest_status" json:"contest_id"`
	SubjectID         uint       `gorm:"not null;uniqueIndex:idx_participant_contest_subject;index" json:"subject_id"`
	Status            string     `gorm:"size:20;not null;default:'active';index:idx_participant_contest_status" json:"status"`
	EliminatedInRound *int       `json:"eliminated_in_round,omitempty"`
	EliminatedAt      *time.Time `json:"eliminated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Participant) TableName() string {
	return "contest_participants"
}

// IsActive проверяет, участвует ли участник в следующих раундах
func (p *Participant) IsActive() bool {
	return p.Status == ParticipantStatusActive
}

// IsWinner проверяет, стал ли участник победителем
func (p *Participant) IsWinner() bool {
	return p.Status == ParticipantStatusWinner
}
