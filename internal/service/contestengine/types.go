package contestengine

import (
	"context"
	"time"

	"github.com/yourusername/contest-api/internal/domain/repository"
)

// Типы событий, которые движок отправляет наблюдателям
const (
	EventRoundCompleted   = "round:completed"
	EventContestCompleted = "contest:completed"
)

// Значения по умолчанию
const (
	DefaultSystemActorID = "system:auto-advance"
	DefaultDisplayLimit  = 20
)

// Config содержит настройки движка и автопродвижения
type Config struct {
	// Интервал тика планировщика
	TickInterval time.Duration
	// Задержка между раундами при автопродвижении
	InterRoundDelay time.Duration
	// Задержка между раундами при ленивом продвижении из read-запроса
	LazyInterRoundDelay time.Duration
	// Предохранитель: максимум вызовов AdvanceOneRound на один конкурс за проход
	MaxIterations int
	// Пауза перед повтором, если раунд уже выполняется другим вызовом
	RetryBackoff time.Duration
	// Актор, от имени которого планировщик выполняет раунды
	SystemActorID string
	// Максимальный размер display-подмножества выбывших
	DisplayLimit int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		TickInterval:        10 * time.Second,
		InterRoundDelay:     2 * time.Second,
		LazyInterRoundDelay: 0,
		MaxIterations:       10,
		RetryBackoff:        500 * time.Millisecond,
		SystemActorID:       DefaultSystemActorID,
		DisplayLimit:        DefaultDisplayLimit,
	}
}

// Notifier получает результаты раундов (websocket, pub/sub)
type Notifier interface {
	NotifyRound(contestID uint, eventType string, payload interface{})
}

// DistributedLocker - межинстансовая блокировка раундов конкурса.
// acquired=false означает, что блокировку держит другой инстанс.
type DistributedLocker interface {
	TryLock(ctx context.Context, contestID uint) (release func(), acquired bool, err error)
}

// Dependencies содержит зависимости движка
type Dependencies struct {
	ContestRepo     repository.ContestRepository
	ParticipantRepo repository.ParticipantRepository
	UserRepo        repository.UserRepository
	Notifier        Notifier          // может быть nil
	Locker          DistributedLocker // может быть nil (одиночный инстанс)
	Config          *Config
}

// DisplayEntry - выбывший участник для показа в интерфейсе
type DisplayEntry struct {
	SubjectID uint   `json:"subject_id"`
	Name      string `json:"name"`
}

// RoundResult - итог одного выполненного раунда
type RoundResult struct {
	ContestID       uint           `json:"contest_id"`
	Round           int            `json:"round"`
	Eliminated      int            `json:"eliminated"`
	Remaining       int            `json:"remaining"`
	EliminatedUsers []DisplayEntry `json:"eliminated_users"`
	Winners         []DisplayEntry `json:"winners,omitempty"`
	IsComplete      bool           `json:"is_complete"`
	ExecutedBy      string         `json:"executed_by"`
	ExecutedAt      time.Time      `json:"executed_at"`
}
