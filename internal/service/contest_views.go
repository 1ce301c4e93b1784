package service

import (
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/service/contestengine"
)

// CreateContestInput - параметры нового конкурса
type CreateContestInput struct {
	Name              string
	Variant           string
	RegistrationStart time.Time
	RegistrationEnd   time.Time
}

// RegistrationResult - итог регистрации участников
type RegistrationResult struct {
	ContestID uint `json:"contest_id"`
	Created   int  `json:"created"`
	Skipped   int  `json:"skipped"`
	Total     int  `json:"total"`
}

// RoundSummary - краткая информация о последнем раунде
type RoundSummary struct {
	RoundNumber       int       `json:"round_number"`
	TotalParticipants int       `json:"total_participants"`
	EliminatedCount   int       `json:"eliminated_count"`
	ExecutedBy        string    `json:"executed_by"`
	ExecutedAt        time.Time `json:"executed_at"`
}

// ViewerStatus - положение конкретного пользователя в конкурсе
type ViewerStatus struct {
	SubjectID         uint   `json:"subject_id"`
	Status            string `json:"status"`
	EliminatedInRound *int   `json:"eliminated_in_round,omitempty"`
}

// ContestStatus - read-only проекция состояния конкурса
type ContestStatus struct {
	ContestID         uint                         `json:"contest_id"`
	Name              string                       `json:"name"`
	Status            string                       `json:"status"`
	Variant           string                       `json:"variant"`
	CurrentRound      int                          `json:"current_round"`
	TotalParticipants int                          `json:"total_participants"`
	RemainingActive   int64                        `json:"remaining_active"`
	RegistrationEnd   time.Time                    `json:"registration_end"`
	WinnerIDs         []uint                       `json:"winner_ids"`
	LatestRound       *RoundSummary                `json:"latest_round,omitempty"`
	EliminatedUsers   []contestengine.DisplayEntry `json:"eliminated_users"`
	Viewer            *ViewerStatus                `json:"viewer,omitempty"`
}

// statusSnapshot - кешируемая часть статуса. Display-подмножество выбирается заново на каждый запрос.
type statusSnapshot struct {
	Status           ContestStatus `json:"status"`
	LatestEliminated []uint        `json:"latest_eliminated"`
}

// RoundView - раунд с именами выбывших и победителей
type RoundView struct {
	Round           entity.Round                 `json:"round"`
	EliminatedUsers []contestengine.DisplayEntry `json:"eliminated_users"`
	Winners         []contestengine.DisplayEntry `json:"winners"`
}
