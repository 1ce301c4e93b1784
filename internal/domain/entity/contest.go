package entity

import (
	"time"
)

// Константы статусов конкурса
const (
	ContestStatusPending   = "pending"
	ContestStatusActive    = "active"
	ContestStatusCompleted = "completed"
)

// Варианты конкурса. Вариант определяет количество победителей финального раунда.
const (
	ContestVariantScheduled = "scheduled"
	ContestVariantManual    = "manual"
)

// FinalRound - номер терминального раунда
const FinalRound = 4

// Contest представляет конкурс на выбывание
type Contest struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Name              string     `gorm:"size:100;not null" json:"name"`
	Status            string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Variant           string     `gorm:"size:20;not null;default:'scheduled'" json:"variant"`
	CurrentRound      int        `gorm:"not null;default:0" json:"current_round"`
	AutoAdvance       bool       `gorm:"not null;default:false;index" json:"auto_advance"`
	RegistrationStart time.Time  `gorm:"not null" json:"registration_start"`
	RegistrationEnd   time.Time  `gorm:"not null;index" json:"registration_end"`
	TotalParticipants int        `gorm:"not null;default:0" json:"total_participants"`
	WinnerIDs         IDList     `gorm:"type:jsonb;not null" json:"winner_ids"`
	CreatedBy         string     `gorm:"size:64;not null;default:''" json:"created_by"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `gorm:"index" json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Contest) TableName() string {
	return "contests"
}

// IsPending проверяет, ожидает ли конкурс первого раунда
func (c *Contest) IsPending() bool {
	return c.Status == ContestStatusPending
}

// IsActive проверяет, идут ли раунды конкурса
func (c *Contest) IsActive() bool {
	return c.Status == ContestStatusActive
}

// IsCompleted проверяет, завершён ли конкурс
func (c *Contest) IsCompleted() bool {
	return c.Status == ContestStatusCompleted
}

// IsManual returns true for contests that are advanced only by an administrator.
func (c *Contest) IsManual() bool {
	return c.Variant == ContestVariantManual
}

// RegistrationExpired проверяет, закончилось ли окно регистрации к моменту now
func (c *Contest) RegistrationExpired(now time.Time) bool {
	return c.RegistrationEnd.Before(now)
}

// EligibleForAutoAdvance сообщает, должен ли планировщик довести конкурс до конца
func (c *Contest) EligibleForAutoAdvance(now time.Time) bool {
	return c.AutoAdvance && !c.IsCompleted() && c.RegistrationExpired(now)
}

// IsValidContestVariant проверяет допустимость варианта
func IsValidContestVariant(variant string) bool {
	return variant == ContestVariantScheduled || variant == ContestVariantManual
}
