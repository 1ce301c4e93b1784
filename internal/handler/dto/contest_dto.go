package dto

import (
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// CreateContestRequest - тело запроса на создание конкурса
type CreateContestRequest struct {
	Name              string    `json:"name" binding:"required,min=3,max=100"`
	Variant           string    `json:"variant" binding:"omitempty,oneof=scheduled manual"`
	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end" binding:"required"`
}

// RegisterParticipantsRequest - регистрация участников по ID пользователей
type RegisterParticipantsRequest struct {
	SubjectIDs []uint `json:"subject_ids" binding:"required,min=1,max=10000,dive,gt=0"`
}

// SeedRosterRequest - заполнение ростера случайными пользователями. Count = 0 означает всех.
type SeedRosterRequest struct {
	Count int `json:"count" binding:"min=0"`
}

// ContestResponse представляет конкурс в ответе клиенту
type ContestResponse struct {
	ID                uint       `json:"id"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	Variant           string     `json:"variant"`
	CurrentRound      int        `json:"current_round"`
	AutoAdvance       bool       `json:"auto_advance"`
	RegistrationStart time.Time  `json:"registration_start"`
	RegistrationEnd   time.Time  `json:"registration_end"`
	TotalParticipants int        `json:"total_participants"`
	WinnerIDs         []uint     `json:"winner_ids"`
	CreatedBy         string     `json:"created_by,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// PaginatedContestResponse - страница конкурсов
type PaginatedContestResponse struct {
	Contests []ContestResponse `json:"contests"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PerPage  int               `json:"per_page"`
}

// ParticipantResponse представляет участника конкурса
type ParticipantResponse struct {
	SubjectID         uint       `json:"subject_id"`
	Status            string     `json:"status"`
	EliminatedInRound *int       `json:"eliminated_in_round,omitempty"`
	EliminatedAt      *time.Time `json:"eliminated_at,omitempty"`
	RegisteredAt      time.Time  `json:"registered_at"`
}

// PaginatedParticipantResponse - страница ростера
type PaginatedParticipantResponse struct {
	Participants []ParticipantResponse `json:"participants"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PerPage      int                   `json:"per_page"`
}

// RoundResponse представляет запись раунда
type RoundResponse struct {
	RoundNumber          int       `json:"round_number"`
	TotalParticipants    int       `json:"total_participants"`
	EliminatedCount      int       `json:"eliminated_count"`
	EliminatedSubjectIDs []uint    `json:"eliminated_subject_ids"`
	WinnerSubjectIDs     []uint    `json:"winner_subject_ids,omitempty"`
	ExecutedBy           string    `json:"executed_by"`
	ExecutedAt           time.Time `json:"executed_at"`
}

// NewContestResponse создает DTO конкурса
func NewContestResponse(c *entity.Contest) ContestResponse {
	winners := []uint(c.WinnerIDs)
	if winners == nil {
		winners = []uint{}
	}
	return ContestResponse{
		ID:                c.ID,
		Name:              c.Name,
		Status:            c.Status,
		Variant:           c.Variant,
		CurrentRound:      c.CurrentRound,
		AutoAdvance:       c.AutoAdvance,
		RegistrationStart: c.RegistrationStart,
		RegistrationEnd:   c.RegistrationEnd,
		TotalParticipants: c.TotalParticipants,
		WinnerIDs:         winners,
		CreatedBy:         c.CreatedBy,
		StartedAt:         c.StartedAt,
		CompletedAt:       c.CompletedAt,
		CreatedAt:         c.CreatedAt,
	}
}

// NewPaginatedContestResponse создает страницу конкурсов
func NewPaginatedContestResponse(contests []entity.Contest, total int64, page, perPage int) *PaginatedContestResponse {
	items := make([]ContestResponse, 0, len(contests))
	for i := range contests {
		items = append(items, NewContestResponse(&contests[i]))
	}
	return &PaginatedContestResponse{Contests: items, Total: total, Page: page, PerPage: perPage}
}

// NewPaginatedParticipantResponse создает страницу участников
func NewPaginatedParticipantResponse(participants []entity.Participant, total int64, page, perPage int) *PaginatedParticipantResponse {
	items := make([]ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		items = append(items, ParticipantResponse{
			SubjectID:         p.SubjectID,
			Status:            p.Status,
			EliminatedInRound: p.EliminatedInRound,
			EliminatedAt:      p.EliminatedAt,
			RegisteredAt:      p.CreatedAt,
		})
	}
	return &PaginatedParticipantResponse{Participants: items, Total: total, Page: page, PerPage: perPage}
}

// NewRoundResponse создает DTO раунда
func NewRoundResponse(r *entity.Round) RoundResponse {
	eliminated := []uint(r.EliminatedSubjectIDs)
	if eliminated == nil {
		eliminated = []uint{}
	}
	return RoundResponse{
		RoundNumber:          r.RoundNumber,
		TotalParticipants:    r.TotalParticipants,
		EliminatedCount:      r.EliminatedCount,
		EliminatedSubjectIDs: eliminated,
		WinnerSubjectIDs:     r.WinnerSubjectIDs,
		ExecutedBy:           r.ExecutedBy,
		ExecutedAt:           r.ExecutedAt,
	}
}

// NewListRoundResponse создает список раундов
func NewListRoundResponse(rounds []entity.Round) []RoundResponse {
	items := make([]RoundResponse, 0, len(rounds))
	for i := range rounds {
		items = append(items, NewRoundResponse(&rounds[i]))
	}
	return items
}
