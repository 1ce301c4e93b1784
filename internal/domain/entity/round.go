package entity

import (
	"time"
)

// Round - неизменяемая запись аудита одного выполненного раунда
type Round struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	ContestID            uint      `gorm:"not null;uniqueIndex:idx_round_contest_number" json:"contest_id"`
	RoundNumber          int       `gorm:"not null;uniqueIndex:idx_round_contest_number" json:"round_number"`
	TotalParticipants    int       `gorm:"not null" json:"total_participants"` // Активных до начала раунда
	EliminatedCount      int       `gorm:"not null" json:"eliminated_count"`
	EliminatedSubjectIDs IDList    `gorm:"type:jsonb;not null" json:"eliminated_subject_ids"`
	WinnerSubjectIDs     IDList    `gorm:"type:jsonb;not null" json:"winner_subject_ids"` // Только для финального раунда
	ExecutedBy           string    `gorm:"size:64;not null" json:"executed_by"`
	ExecutedAt           time.Time `gorm:"not null;index" json:"executed_at"`
	CreatedAt            time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Round) TableName() string {
	return "contest_rounds"
}

// IsFinal проверяет, является ли раунд терминальным
func (r *Round) IsFinal() bool {
	return r.RoundNumber == FinalRound
}
