package contestengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// Engine - конечный автомат конкурса. Единственная точка продвижения раундов
// для всех триггеров: ручного, планировщика и ленивого.
type Engine struct {
	config *Config
	deps   *Dependencies
	guard  *RoundGuard
	now    func() time.Time
}

// NewEngine создает движок конкурсов
func NewEngine(deps *Dependencies) *Engine {
	config := deps.Config
	if config == nil {
		config = DefaultConfig()
	}
	if config.DisplayLimit <= 0 {
		config.DisplayLimit = DefaultDisplayLimit
	}
	return &Engine{
		config: config,
		deps:   deps,
		guard:  NewRoundGuard(),
		now:    time.Now,
	}
}

// Config возвращает конфигурацию движка
func (e *Engine) Config() *Config {
	return e.config
}

// Busy сообщает, выполняется ли сейчас раунд конкурса в этом процессе
func (e *Engine) Busy(contestID uint) bool {
	return e.guard.Held(contestID)
}

// Acquire захватывает конкурс для изменения: сначала внутрипроцессный замок,
// затем распределённый (если настроен). При занятости возвращает ErrRoundInProgress.
// Ошибка Redis не блокирует работу: последним барьером остаётся условная фиксация в БД.
func (e *Engine) Acquire(ctx context.Context, contestID uint) (func(), error) {
	releaseLocal, ok := e.guard.TryAcquire(contestID)
	if !ok {
		return nil, fmt.Errorf("%w: contest #%d", ErrRoundInProgress, contestID)
	}

	if e.deps.Locker == nil {
		return releaseLocal, nil
	}

	releaseRemote, acquired, err := e.deps.Locker.TryLock(ctx, contestID)
	if err != nil {
		log.Printf("[Engine] Предупреждение: распределённая блокировка недоступна для конкурса #%d: %v", contestID, err)
		return releaseLocal, nil
	}
	if !acquired {
		releaseLocal()
		return nil, fmt.Errorf("%w: contest #%d (locked by another instance)", ErrRoundInProgress, contestID)
	}

	return func() {
		releaseRemote()
		releaseLocal()
	}, nil
}

// AdvanceOneRound выполняет следующий раунд конкурса от имени actorID.
// Все изменения раунда фиксируются одной атомарной операцией.
func (e *Engine) AdvanceOneRound(ctx context.Context, contestID uint, actorID string) (*RoundResult, error) {
	release, err := e.Acquire(ctx, contestID)
	if err != nil {
		return nil, err
	}
	defer release()

	contest, err := e.deps.ContestRepo.GetByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w #%d", ErrContestNotFound, contestID)
		}
		return nil, fmt.Errorf("load contest #%d: %w", contestID, err)
	}
	if contest.IsCompleted() || contest.CurrentRound >= entity.FinalRound {
		return nil, fmt.Errorf("%w: contest #%d", ErrAlreadyCompleted, contestID)
	}

	nextRound := contest.CurrentRound + 1

	active, names, err := e.loadEligible(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: contest #%d round %d", ErrNoActiveParticipants, contestID, nextRound)
	}

	now := e.now()
	commit := &repository.RoundCommit{
		ContestID:     contestID,
		ExpectedRound: contest.CurrentRound,
		Round: &entity.Round{
			ContestID:         contestID,
			RoundNumber:       nextRound,
			TotalParticipants: len(active),
			ExecutedBy:        actorID,
			ExecutedAt:        now,
		},
	}
	if nextRound == 1 {
		commit.StartedAt = &now
	}

	var eliminated, winners []entity.Participant
	if nextRound < entity.FinalRound {
		count := EliminationCount(nextRound, len(active), contest.Variant)
		eliminated, _, err = Partition(active, count)
	} else {
		// Победители выбираются напрямую, остальные выбывают в финальном раунде
		winners, eliminated, err = Partition(active, WinnerCount(len(active), contest.Variant))
		commit.CompletedAt = &now
	}
	if err != nil {
		return nil, fmt.Errorf("select participants for contest #%d round %d: %w", contestID, nextRound, err)
	}

	eliminatedSubjects := make(entity.IDList, 0, len(eliminated))
	for _, p := range eliminated {
		commit.EliminatedParticipantIDs = append(commit.EliminatedParticipantIDs, p.ID)
		eliminatedSubjects = append(eliminatedSubjects, p.SubjectID)
	}
	winnerSubjects := make(entity.IDList, 0, len(winners))
	for _, p := range winners {
		commit.WinnerParticipantIDs = append(commit.WinnerParticipantIDs, p.ID)
		winnerSubjects = append(winnerSubjects, p.SubjectID)
	}
	commit.Round.EliminatedCount = len(eliminated)
	commit.Round.EliminatedSubjectIDs = eliminatedSubjects
	commit.Round.WinnerSubjectIDs = winnerSubjects
	commit.WinnerSubjectIDs = winnerSubjects

	if err := e.deps.ContestRepo.CommitRound(ctx, commit); err != nil {
		if errors.Is(err, repository.ErrRoundConflict) {
			return nil, fmt.Errorf("%w: contest #%d round %d: %v", ErrRoundInProgress, contestID, nextRound, err)
		}
		return nil, fmt.Errorf("commit contest #%d round %d: %w", contestID, nextRound, err)
	}

	result := &RoundResult{
		ContestID:  contestID,
		Round:      nextRound,
		Eliminated: len(eliminated),
		IsComplete: commit.CompletedAt != nil,
		ExecutedBy: actorID,
		ExecutedAt: now,
	}
	// После финала активных не остаётся: выжившие становятся победителями
	if !result.IsComplete {
		result.Remaining = len(active) - len(eliminated)
	}
	result.EliminatedUsers, err = e.displaySubset(eliminatedSubjects, names)
	if err != nil {
		// Раунд уже зафиксирован, display-подмножество не критично
		log.Printf("[Engine] Ошибка выбора display-подмножества для конкурса #%d: %v", contestID, err)
		result.EliminatedUsers = []DisplayEntry{}
	}
	for _, id := range winnerSubjects {
		result.Winners = append(result.Winners, DisplayEntry{SubjectID: id, Name: names[id]})
	}

	log.Printf("[Engine] Конкурс #%d: раунд %d выполнен (%s), выбыло %d, осталось %d",
		contestID, nextRound, actorID, result.Eliminated, result.Remaining)

	e.notify(contestID, EventRoundCompleted, result)
	if result.IsComplete {
		log.Printf("[Engine] Конкурс #%d завершён, победители: %v", contestID, winnerSubjects)
		e.notify(contestID, EventContestCompleted, result)
	}

	return result, nil
}

// ForceComplete завершает конкурс без выполнения раунда (нет активных участников)
func (e *Engine) ForceComplete(ctx context.Context, contestID uint) error {
	release, err := e.Acquire(ctx, contestID)
	if err != nil {
		return err
	}
	defer release()

	now := e.now()
	if err := e.deps.ContestRepo.ForceComplete(ctx, contestID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrContestAlreadyCompleted):
			return fmt.Errorf("%w: contest #%d", ErrAlreadyCompleted, contestID)
		case errors.Is(err, apperrors.ErrNotFound):
			return fmt.Errorf("%w #%d", ErrContestNotFound, contestID)
		}
		return fmt.Errorf("force complete contest #%d: %w", contestID, err)
	}

	log.Printf("[Engine] Конкурс #%d принудительно завершён: нет активных участников", contestID)
	e.notify(contestID, EventContestCompleted, &RoundResult{
		ContestID:       contestID,
		EliminatedUsers: []DisplayEntry{},
		IsComplete:      true,
		ExecutedBy:      e.config.SystemActorID,
		ExecutedAt:      now,
	})
	return nil
}

// loadEligible возвращает активных участников, чья внешняя идентичность существует, и их имена
func (e *Engine) loadEligible(ctx context.Context, contestID uint) ([]entity.Participant, map[uint]string, error) {
	participants, err := e.deps.ParticipantRepo.ListActive(ctx, contestID)
	if err != nil {
		return nil, nil, fmt.Errorf("load active participants of contest #%d: %w", contestID, err)
	}
	if len(participants) == 0 {
		return nil, map[uint]string{}, nil
	}

	subjectIDs := make([]uint, len(participants))
	for i, p := range participants {
		subjectIDs[i] = p.SubjectID
	}
	names, err := e.deps.UserRepo.GetDisplayNames(ctx, subjectIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load identities of contest #%d: %w", contestID, err)
	}

	eligible := participants[:0]
	for _, p := range participants {
		if _, ok := names[p.SubjectID]; ok {
			eligible = append(eligible, p)
		}
	}
	if dropped := len(participants) - len(eligible); dropped > 0 {
		log.Printf("[Engine] Конкурс #%d: пропущено %d участников без идентичности", contestID, dropped)
	}
	return eligible, names, nil
}

// displaySubset выбирает не более DisplayLimit выбывших для показа
func (e *Engine) displaySubset(subjectIDs []uint, names map[uint]string) ([]DisplayEntry, error) {
	picked, err := SelectRandom(subjectIDs, min(e.config.DisplayLimit, len(subjectIDs)))
	if err != nil {
		return nil, err
	}
	entries := make([]DisplayEntry, 0, len(picked))
	for _, id := range picked {
		entries = append(entries, DisplayEntry{SubjectID: id, Name: names[id]})
	}
	return entries, nil
}

func (e *Engine) notify(contestID uint, eventType string, payload interface{}) {
	if e.deps.Notifier == nil {
		return
	}
	e.deps.Notifier.NotifyRound(contestID, eventType, payload)
}
