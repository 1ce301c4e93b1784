package entity

import (
	"strings"
	"time"
)

// Роли пользователей
const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

// User - внешняя идентичность участника. Сервис конкурсов только читает эту таблицу.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"size:50;not null;uniqueIndex" json:"username"`
	DisplayName string     `gorm:"size:100;not null;default:''" json:"display_name"`
	Role        string     `gorm:"size:20;not null;default:'user'" json:"-"` // "user" или "admin"
	DeletedAt   *time.Time `gorm:"type:timestamp" json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// IsDeleted возвращает true, если пользователь удалён
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// Name возвращает отображаемое имя, а при его отсутствии - username
func (u *User) Name() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return u.Username
}
