package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
)

// Store хранит конкурсы, участников, раунды и пользователей в памяти процесса.
// Все репозитории, выданные одним Store, разделяют общий мьютекс,
// поэтому CommitRound атомарен относительно любых чтений.
type Store struct {
	mu sync.RWMutex

	contests     map[uint]entity.Contest
	participants map[uint]entity.Participant
	rounds       map[uint]entity.Round
	users        map[uint]entity.User

	nextContestID     uint
	nextParticipantID uint
	nextRoundID       uint

	now func() time.Time
}

// NewStore создает пустое хранилище с начальным набором пользователей
func NewStore(seed []entity.User) *Store {
	s := &Store{
		contests:     make(map[uint]entity.Contest),
		participants: make(map[uint]entity.Participant),
		rounds:       make(map[uint]entity.Round),
		users:        make(map[uint]entity.User, len(seed)),
		now:          time.Now,
	}
	for _, user := range seed {
		s.users[user.ID] = user
	}
	return s
}

// SeedUser добавляет или заменяет пользователя
func (s *Store) SeedUser(user entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// DeleteUser помечает пользователя удалённым
func (s *Store) DeleteUser(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		deletedAt := s.now()
		user.DeletedAt = &deletedAt
		s.users[id] = user
	}
}

// Contests возвращает репозиторий конкурсов поверх хранилища
func (s *Store) Contests() *ContestRepo {
	return &ContestRepo{store: s}
}

// Participants возвращает репозиторий участников поверх хранилища
func (s *Store) Participants() *ParticipantRepo {
	return &ParticipantRepo{store: s}
}

// Rounds возвращает репозиторий раундов поверх хранилища
func (s *Store) Rounds() *RoundRepo {
	return &RoundRepo{store: s}
}

// Users возвращает репозиторий пользователей поверх хранилища
func (s *Store) Users() *UserRepo {
	return &UserRepo{store: s}
}

func cloneIDs(ids entity.IDList) entity.IDList {
	out := make(entity.IDList, len(ids))
	copy(out, ids)
	return out
}

func cloneContest(c entity.Contest) entity.Contest {
	c.WinnerIDs = cloneIDs(c.WinnerIDs)
	return c
}

func cloneRound(r entity.Round) entity.Round {
	r.EliminatedSubjectIDs = cloneIDs(r.EliminatedSubjectIDs)
	r.WinnerSubjectIDs = cloneIDs(r.WinnerSubjectIDs)
	return r
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// participantsOf возвращает участников конкурса по возрастанию ID. Вызывать под мьютексом.
func (s *Store) participantsOf(contestID uint) []entity.Participant {
	out := make([]entity.Participant, 0)
	for _, p := range s.participants {
		if p.ContestID == contestID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	_ repository.ContestRepository     = (*ContestRepo)(nil)
	_ repository.ParticipantRepository = (*ParticipantRepo)(nil)
	_ repository.RoundRepository       = (*RoundRepo)(nil)
	_ repository.UserRepository        = (*UserRepo)(nil)
)
