package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
	"github.com/yourusername/contest-api/internal/service/contestengine"
)

// StatusCacheKey возвращает ключ кеша проекции статуса конкурса
func StatusCacheKey(contestID uint) string {
	return fmt.Sprintf("contest:status:%d", contestID)
}

// ContestServiceConfig - настройки сервиса конкурсов
type ContestServiceConfig struct {
	StatusCacheTTL      time.Duration
	LazyAdvanceEnabled  bool
	LazyInterRoundDelay time.Duration
	DisplayLimit        int
}

// ContestService предоставляет методы администрирования и чтения конкурсов.
// Продвижение раундов делегируется contestengine.Engine.
type ContestService struct {
	contestRepo     repository.ContestRepository
	participantRepo repository.ParticipantRepository
	roundRepo       repository.RoundRepository
	userRepo        repository.UserRepository
	cacheRepo       repository.CacheRepository // может быть nil
	engine          *contestengine.Engine
	advancer        *contestengine.AutoAdvancer // может быть nil
	config          ContestServiceConfig
}

// NewContestService создает новый сервис конкурсов
func NewContestService(
	contestRepo repository.ContestRepository,
	participantRepo repository.ParticipantRepository,
	roundRepo repository.RoundRepository,
	userRepo repository.UserRepository,
	cacheRepo repository.CacheRepository,
	engine *contestengine.Engine,
	advancer *contestengine.AutoAdvancer,
	config ContestServiceConfig,
) *ContestService {
	if config.DisplayLimit <= 0 {
		config.DisplayLimit = contestengine.DefaultDisplayLimit
	}
	return &ContestService{
		contestRepo:     contestRepo,
		participantRepo: participantRepo,
		roundRepo:       roundRepo,
		userRepo:        userRepo,
		cacheRepo:       cacheRepo,
		engine:          engine,
		advancer:        advancer,
		config:          config,
	}
}

// CreateContest создает конкурс в статусе pending.
// AutoAdvance определяется вариантом: конкурсы по расписанию продвигаются автоматически.
func (s *ContestService) CreateContest(ctx context.Context, input CreateContestInput, createdBy string) (*entity.Contest, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if input.Variant == "" {
		input.Variant = entity.ContestVariantScheduled
	}
	if !entity.IsValidContestVariant(input.Variant) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVariant, input.Variant)
	}
	if !input.RegistrationEnd.After(input.RegistrationStart) {
		return nil, ErrInvalidWindow
	}

	contest := &entity.Contest{
		Name:              name,
		Status:            entity.ContestStatusPending,
		Variant:           input.Variant,
		AutoAdvance:       input.Variant == entity.ContestVariantScheduled,
		RegistrationStart: input.RegistrationStart,
		RegistrationEnd:   input.RegistrationEnd,
		WinnerIDs:         entity.IDList{},
		CreatedBy:         createdBy,
	}
	if err := s.contestRepo.Create(ctx, contest); err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}

	log.Printf("[ContestService] Создан конкурс #%d (%s, %s), регистрация до %v",
		contest.ID, contest.Name, contest.Variant, contest.RegistrationEnd)
	return contest, nil
}

// GetContest возвращает конкурс по ID
func (s *ContestService) GetContest(ctx context.Context, contestID uint) (*entity.Contest, error) {
	return s.contestRepo.GetByID(ctx, contestID)
}

// GetActiveContest возвращает последний созданный незавершённый конкурс
func (s *ContestService) GetActiveContest(ctx context.Context) (*entity.Contest, error) {
	return s.contestRepo.GetLatestOpen(ctx)
}

// ListContests возвращает страницу конкурсов с фильтрами
func (s *ContestService) ListContests(ctx context.Context, filters repository.ContestFilters, limit, offset int) ([]entity.Contest, int64, error) {
	return s.contestRepo.ListWithFilters(ctx, filters, limit, offset)
}

// RegisterParticipants регистрирует subject'ов в конкурсе, пока он в статусе pending.
// Ростер меняется под замком конкурса, чтобы не пересечься с первым раундом.
func (s *ContestService) RegisterParticipants(ctx context.Context, contestID uint, subjectIDs []uint) (*RegistrationResult, error) {
	release, err := s.engine.Acquire(ctx, contestID)
	if err != nil {
		return nil, err
	}
	defer release()

	contest, err := s.contestRepo.GetByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if !contest.IsPending() || contest.CurrentRound != 0 {
		return nil, fmt.Errorf("%w: contest #%d is %s", ErrRegistrationClosed, contestID, contest.Status)
	}

	created, err := s.participantRepo.RegisterBatch(ctx, contestID, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to register participants: %w", err)
	}

	total, err := s.participantRepo.Count(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	if err := s.contestRepo.UpdateTotalParticipants(ctx, contestID, int(total)); err != nil {
		return nil, fmt.Errorf("failed to update participant count: %w", err)
	}
	s.invalidateStatus(ctx, contestID)

	log.Printf("[ContestService] Конкурс #%d: зарегистрировано %d, пропущено %d, всего %d",
		contestID, created, len(subjectIDs)-created, total)
	return &RegistrationResult{
		ContestID: contestID,
		Created:   created,
		Skipped:   len(subjectIDs) - created,
		Total:     int(total),
	}, nil
}

// SeedFromUsers регистрирует случайных пользователей (не админов, не удалённых).
// count <= 0 или больше числа пользователей означает "всех".
func (s *ContestService) SeedFromUsers(ctx context.Context, contestID uint, count int) (*RegistrationResult, error) {
	ids, err := s.userRepo.ListEligibleIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible users: %w", err)
	}
	if count <= 0 || count > len(ids) {
		count = len(ids)
	}

	picked, err := contestengine.SelectRandom(ids, count)
	if err != nil {
		return nil, err
	}
	return s.RegisterParticipants(ctx, contestID, picked)
}

// AdvanceRound выполняет один раунд от имени актора (ручной триггер)
func (s *ContestService) AdvanceRound(ctx context.Context, contestID uint, actorID string) (*contestengine.RoundResult, error) {
	return s.engine.AdvanceOneRound(ctx, contestID, actorID)
}

// ListParticipants возвращает страницу ростера конкурса
func (s *ContestService) ListParticipants(ctx context.Context, contestID uint, limit, offset int) ([]entity.Participant, int64, error) {
	if _, err := s.contestRepo.GetByID(ctx, contestID); err != nil {
		return nil, 0, err
	}
	return s.participantRepo.List(ctx, contestID, limit, offset)
}

// GetWinners возвращает победителей конкурса с именами
func (s *ContestService) GetWinners(ctx context.Context, contestID uint) ([]contestengine.DisplayEntry, error) {
	contest, err := s.contestRepo.GetByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, contest.WinnerIDs)
}

// GetRound возвращает раунд с именами выбывших
func (s *ContestService) GetRound(ctx context.Context, contestID uint, roundNumber int) (*RoundView, error) {
	if roundNumber < 1 || roundNumber > entity.FinalRound {
		return nil, fmt.Errorf("%w: round must be between 1 and %d", apperrors.ErrValidation, entity.FinalRound)
	}
	round, err := s.roundRepo.GetByNumber(ctx, contestID, roundNumber)
	if err != nil {
		return nil, err
	}

	eliminated, err := s.describe(ctx, round.EliminatedSubjectIDs)
	if err != nil {
		return nil, err
	}
	winners, err := s.describe(ctx, round.WinnerSubjectIDs)
	if err != nil {
		return nil, err
	}
	return &RoundView{Round: *round, EliminatedUsers: eliminated, Winners: winners}, nil
}

// ListRounds возвращает историю раундов по возрастанию номера
func (s *ContestService) ListRounds(ctx context.Context, contestID uint) ([]entity.Round, error) {
	if _, err := s.contestRepo.GetByID(ctx, contestID); err != nil {
		return nil, err
	}
	return s.roundRepo.ListByContest(ctx, contestID)
}

// GetStatus возвращает проекцию статуса конкурса. Безопасно вызывать параллельно с продвижением.
// viewerSubjectID = 0 означает анонимного наблюдателя.
func (s *ContestService) GetStatus(ctx context.Context, contestID, viewerSubjectID uint) (*ContestStatus, error) {
	snapshot, err := s.statusSnapshot(ctx, contestID)
	if err != nil {
		return nil, err
	}

	status := snapshot.Status
	status.EliminatedUsers, err = s.displaySubset(ctx, snapshot.LatestEliminated)
	if err != nil {
		return nil, err
	}

	if viewerSubjectID != 0 {
		participant, err := s.participantRepo.GetBySubject(ctx, contestID, viewerSubjectID)
		switch {
		case err == nil:
			status.Viewer = &ViewerStatus{
				SubjectID:         participant.SubjectID,
				Status:            participant.Status,
				EliminatedInRound: participant.EliminatedInRound,
			}
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, err
		}
	}
	return &status, nil
}

// ListHistory возвращает завершённые конкурсы. Если включено ленивое продвижение,
// сначала доводит до конца просроченные конкурсы, которые не обрабатывает планировщик.
func (s *ContestService) ListHistory(ctx context.Context, limit, offset int) ([]entity.Contest, int64, error) {
	if s.config.LazyAdvanceEnabled && s.advancer != nil {
		driven, err := s.advancer.AdvanceExpired(ctx, s.config.LazyInterRoundDelay)
		if err != nil {
			log.Printf("[ContestService] Ошибка ленивого продвижения: %v", err)
		} else if driven > 0 {
			log.Printf("[ContestService] Ленивое продвижение обработало %d конкурсов", driven)
		}
	}
	return s.contestRepo.ListCompleted(ctx, limit, offset)
}

// DeleteContest удаляет конкурс с раундами и участниками
func (s *ContestService) DeleteContest(ctx context.Context, contestID uint) error {
	release, err := s.engine.Acquire(ctx, contestID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.contestRepo.Delete(ctx, contestID); err != nil {
		return err
	}
	s.invalidateStatus(ctx, contestID)
	log.Printf("[ContestService] Конкурс #%d удалён", contestID)
	return nil
}

// DeleteCompleted удаляет все завершённые конкурсы. Кеш статуса удалённых истекает по TTL.
func (s *ContestService) DeleteCompleted(ctx context.Context) (int64, error) {
	deleted, err := s.contestRepo.DeleteCompleted(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("[ContestService] Удалено завершённых конкурсов: %d", deleted)
	return deleted, nil
}

// statusSnapshot возвращает кешируемую часть статуса
func (s *ContestService) statusSnapshot(ctx context.Context, contestID uint) (*statusSnapshot, error) {
	key := StatusCacheKey(contestID)
	if s.cacheRepo != nil {
		var cached statusSnapshot
		if err := s.cacheRepo.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[ContestService] Ошибка чтения кеша статуса конкурса #%d: %v", contestID, err)
		}
	}

	contest, err := s.contestRepo.GetByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	remaining, err := s.participantRepo.CountByStatus(ctx, contestID, entity.ParticipantStatusActive)
	if err != nil {
		return nil, err
	}

	snapshot := &statusSnapshot{
		Status: ContestStatus{
			ContestID:         contest.ID,
			Name:              contest.Name,
			Status:            contest.Status,
			Variant:           contest.Variant,
			CurrentRound:      contest.CurrentRound,
			TotalParticipants: contest.TotalParticipants,
			RemainingActive:   remaining,
			RegistrationEnd:   contest.RegistrationEnd,
			WinnerIDs:         []uint(contest.WinnerIDs),
		},
		LatestEliminated: []uint{},
	}
	if snapshot.Status.WinnerIDs == nil {
		snapshot.Status.WinnerIDs = []uint{}
	}

	if contest.CurrentRound > 0 {
		round, err := s.roundRepo.GetByNumber(ctx, contestID, contest.CurrentRound)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		if round != nil {
			snapshot.Status.LatestRound = &RoundSummary{
				RoundNumber:       round.RoundNumber,
				TotalParticipants: round.TotalParticipants,
				EliminatedCount:   round.EliminatedCount,
				ExecutedBy:        round.ExecutedBy,
				ExecutedAt:        round.ExecutedAt,
			}
			snapshot.LatestEliminated = []uint(round.EliminatedSubjectIDs)
		}
	}

	if s.cacheRepo != nil && s.config.StatusCacheTTL > 0 {
		// Раунд мог зафиксироваться во время чтения: такой снимок не кешируем
		if s.snapshotOutdated(ctx, contest) {
			log.Printf("[ContestService] Статус конкурса #%d изменился во время чтения, кеш не обновляется", contestID)
			return snapshot, nil
		}
		if err := s.cacheRepo.SetJSON(ctx, key, snapshot, s.config.StatusCacheTTL); err != nil {
			log.Printf("[ContestService] Ошибка записи кеша статуса конкурса #%d: %v", contestID, err)
		}
	}
	return snapshot, nil
}

// snapshotOutdated перечитывает конкурс и сравнивает раунд и статус с прочитанными ранее
func (s *ContestService) snapshotOutdated(ctx context.Context, read *entity.Contest) bool {
	current, err := s.contestRepo.GetByID(ctx, read.ID)
	if err != nil {
		return true
	}
	return current.CurrentRound != read.CurrentRound || current.Status != read.Status
}

// displaySubset выбирает не более DisplayLimit выбывших с существующей идентичностью
func (s *ContestService) displaySubset(ctx context.Context, subjectIDs []uint) ([]contestengine.DisplayEntry, error) {
	entries, err := s.describe(ctx, subjectIDs)
	if err != nil {
		return nil, err
	}
	return contestengine.SelectRandom(entries, min(s.config.DisplayLimit, len(entries)))
}

// describe возвращает имена для subject'ов. Удалённые идентичности отфильтровываются.
func (s *ContestService) describe(ctx context.Context, subjectIDs []uint) ([]contestengine.DisplayEntry, error) {
	entries := make([]contestengine.DisplayEntry, 0, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return entries, nil
	}

	names, err := s.userRepo.GetDisplayNames(ctx, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load display names: %w", err)
	}
	for _, id := range subjectIDs {
		if name, ok := names[id]; ok {
			entries = append(entries, contestengine.DisplayEntry{SubjectID: id, Name: name})
		}
	}
	return entries, nil
}

func (s *ContestService) invalidateStatus(ctx context.Context, contestID uint) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(ctx, StatusCacheKey(contestID)); err != nil {
		log.Printf("[ContestService] Ошибка сброса кеша статуса конкурса #%d: %v", contestID, err)
	}
}

// StatusCacheNotifier сбрасывает кеш статуса после каждого зафиксированного раунда
// и передаёт событие дальше (websocket).
type StatusCacheNotifier struct {
	cacheRepo repository.CacheRepository
	next      contestengine.Notifier
}

// NewStatusCacheNotifier создает notifier. cacheRepo и next могут быть nil.
func NewStatusCacheNotifier(cacheRepo repository.CacheRepository, next contestengine.Notifier) *StatusCacheNotifier {
	return &StatusCacheNotifier{cacheRepo: cacheRepo, next: next}
}

// NotifyRound реализует contestengine.Notifier
func (n *StatusCacheNotifier) NotifyRound(contestID uint, eventType string, payload interface{}) {
	if n.cacheRepo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := n.cacheRepo.Delete(ctx, StatusCacheKey(contestID)); err != nil {
			log.Printf("[ContestService] Ошибка сброса кеша статуса конкурса #%d: %v", contestID, err)
		}
		cancel()
	}
	if n.next != nil {
		n.next.NotifyRound(contestID, eventType, payload)
	}
}
