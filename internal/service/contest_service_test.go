package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
	"github.com/yourusername/contest-api/internal/repository/memory"
	"github.com/yourusername/contest-api/internal/service/contestengine"
)

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

// MockNotifier реализует contestengine.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyRound(contestID uint, eventType string, payload interface{}) {
	m.Called(contestID, eventType, payload)
}

type serviceFixture struct {
	store    *memory.Store
	engine   *contestengine.Engine
	advancer *contestengine.AutoAdvancer
	service  *ContestService
}

func newServiceFixture(t *testing.T, cache repository.CacheRepository, users int) *serviceFixture {
	t.Helper()

	seed := make([]entity.User, 0, users+1)
	for i := 1; i <= users; i++ {
		seed = append(seed, entity.User{ID: uint(i), Username: "player", Role: entity.UserRoleUser})
	}
	seed = append(seed, entity.User{ID: 1000, Username: "root", Role: entity.UserRoleAdmin})
	store := memory.NewStore(seed)

	cfg := contestengine.DefaultConfig()
	cfg.InterRoundDelay = 0
	cfg.RetryBackoff = time.Millisecond
	engine := contestengine.NewEngine(&contestengine.Dependencies{
		ContestRepo:     store.Contests(),
		ParticipantRepo: store.Participants(),
		UserRepo:        store.Users(),
		Config:          cfg,
	})
	advancer := contestengine.NewAutoAdvancer(engine)

	svc := NewContestService(store.Contests(), store.Participants(), store.Rounds(), store.Users(),
		cache, engine, advancer, ContestServiceConfig{
			StatusCacheTTL:     5 * time.Second,
			LazyAdvanceEnabled: true,
		})
	return &serviceFixture{store: store, engine: engine, advancer: advancer, service: svc}
}

func validInput(variant string) CreateContestInput {
	return CreateContestInput{
		Name:              "Friday draw",
		Variant:           variant,
		RegistrationStart: time.Now().Add(-time.Hour),
		RegistrationEnd:   time.Now().Add(time.Hour),
	}
}

func TestContestService_CreateContest(t *testing.T) {
	f := newServiceFixture(t, nil, 0)
	ctx := context.Background()

	t.Run("scheduled contests auto-advance", func(t *testing.T) {
		contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantScheduled), "admin:1")
		require.NoError(t, err)
		assert.True(t, contest.AutoAdvance)
		assert.True(t, contest.IsPending())
		assert.Equal(t, "admin:1", contest.CreatedBy)
	})

	t.Run("manual contests do not auto-advance", func(t *testing.T) {
		contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantManual), "admin:1")
		require.NoError(t, err)
		assert.False(t, contest.AutoAdvance)
	})

	t.Run("invalid variant", func(t *testing.T) {
		_, err := f.service.CreateContest(ctx, validInput("weekly"), "admin:1")
		assert.ErrorIs(t, err, ErrInvalidVariant)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("inverted window", func(t *testing.T) {
		input := validInput(entity.ContestVariantManual)
		input.RegistrationEnd = input.RegistrationStart.Add(-time.Minute)
		_, err := f.service.CreateContest(ctx, input, "admin:1")
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("empty name", func(t *testing.T) {
		input := validInput(entity.ContestVariantManual)
		input.Name = "  "
		_, err := f.service.CreateContest(ctx, input, "admin:1")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestContestService_RegisterParticipants(t *testing.T) {
	f := newServiceFixture(t, nil, 20)
	ctx := context.Background()

	contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantManual), "admin:1")
	require.NoError(t, err)

	result, err := f.service.RegisterParticipants(ctx, contest.ID, []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)

	result, err = f.service.RegisterParticipants(ctx, contest.ID, []uint{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 4, result.Total)

	stored, err := f.service.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.TotalParticipants)

	_, err = f.service.AdvanceRound(ctx, contest.ID, "admin:1")
	require.NoError(t, err)

	_, err = f.service.RegisterParticipants(ctx, contest.ID, []uint{5})
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	_, err = f.service.RegisterParticipants(ctx, 999, []uint{5})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestContestService_SeedFromUsers(t *testing.T) {
	f := newServiceFixture(t, nil, 30)
	ctx := context.Background()

	contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantScheduled), "admin:1")
	require.NoError(t, err)

	result, err := f.service.SeedFromUsers(ctx, contest.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, result.Created)

	result, err = f.service.SeedFromUsers(ctx, contest.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, result.Total, "admins are never seeded")

	_, err = f.store.Participants().GetBySubject(ctx, contest.ID, 1000)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestContestService_GetStatus(t *testing.T) {
	cache := new(MockCacheRepository)
	f := newServiceFixture(t, cache, 40)
	ctx := context.Background()

	contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantScheduled), "admin:1")
	require.NoError(t, err)

	cache.On("Delete", mock.Anything, []string{StatusCacheKey(contest.ID)}).Return(nil)
	_, err = f.service.SeedFromUsers(ctx, contest.ID, 0)
	require.NoError(t, err)
	_, err = f.service.AdvanceRound(ctx, contest.ID, "admin:1")
	require.NoError(t, err)

	cache.On("GetJSON", mock.Anything, StatusCacheKey(contest.ID), mock.Anything).Return(apperrors.ErrNotFound).Once()
	cache.On("SetJSON", mock.Anything, StatusCacheKey(contest.ID), mock.Anything, 5*time.Second).Return(nil).Once()

	status, err := f.service.GetStatus(ctx, contest.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, entity.ContestStatusActive, status.Status)
	assert.Equal(t, 1, status.CurrentRound)
	assert.Equal(t, int64(20), status.RemainingActive)
	require.NotNil(t, status.LatestRound)
	assert.Equal(t, 20, status.LatestRound.EliminatedCount)
	assert.Len(t, status.EliminatedUsers, 20)
	require.NotNil(t, status.Viewer)
	assert.Equal(t, uint(7), status.Viewer.SubjectID)

	// Кеш-хит: репозитории не нужны, данные берутся из снимка
	cache.On("GetJSON", mock.Anything, StatusCacheKey(contest.ID), mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(2).(*statusSnapshot)
			dest.Status = ContestStatus{ContestID: contest.ID, Status: "cached", WinnerIDs: []uint{}}
			dest.LatestEliminated = []uint{1, 2}
		}).
		Return(nil).Once()

	cached, err := f.service.GetStatus(ctx, contest.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "cached", cached.Status)
	assert.Len(t, cached.EliminatedUsers, 2)
	assert.Nil(t, cached.Viewer)

	cache.AssertExpectations(t)
}

// roundDuringReadRepo фиксирует раунд сразу после первого чтения конкурса
type roundDuringReadRepo struct {
	repository.ContestRepository
	once    sync.Once
	advance func()
}

func (r *roundDuringReadRepo) GetByID(ctx context.Context, id uint) (*entity.Contest, error) {
	contest, err := r.ContestRepository.GetByID(ctx, id)
	r.once.Do(r.advance)
	return contest, err
}

func TestContestService_GetStatusSkipsCachingOutdatedSnapshot(t *testing.T) {
	cache := new(MockCacheRepository)
	f := newServiceFixture(t, cache, 10)
	ctx := context.Background()

	contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantScheduled), "admin:1")
	require.NoError(t, err)
	cache.On("Delete", mock.Anything, []string{StatusCacheKey(contest.ID)}).Return(nil)
	_, err = f.service.SeedFromUsers(ctx, contest.ID, 0)
	require.NoError(t, err)

	repo := &roundDuringReadRepo{ContestRepository: f.store.Contests()}
	repo.advance = func() {
		_, err := f.engine.AdvanceOneRound(ctx, contest.ID, "admin:1")
		require.NoError(t, err)
	}
	svc := NewContestService(repo, f.store.Participants(), f.store.Rounds(), f.store.Users(),
		cache, f.engine, f.advancer, ContestServiceConfig{StatusCacheTTL: 5 * time.Second})

	cache.On("GetJSON", mock.Anything, StatusCacheKey(contest.ID), mock.Anything).Return(apperrors.ErrNotFound)

	status, err := svc.GetStatus(ctx, contest.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, status.CurrentRound, "snapshot reflects the first read")
	cache.AssertNotCalled(t, "SetJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// Следующее чтение уже стабильно и попадает в кеш
	cache.On("SetJSON", mock.Anything, StatusCacheKey(contest.ID), mock.Anything, 5*time.Second).Return(nil).Once()
	status, err = svc.GetStatus(ctx, contest.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentRound)
	cache.AssertExpectations(t)
}

func TestContestService_GetStatusNotFound(t *testing.T) {
	f := newServiceFixture(t, nil, 0)
	_, err := f.service.GetStatus(context.Background(), 42, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestContestService_RoundsAndWinners(t *testing.T) {
	f := newServiceFixture(t, nil, 40)
	ctx := context.Background()

	contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantScheduled), "admin:1")
	require.NoError(t, err)
	_, err = f.service.SeedFromUsers(ctx, contest.ID, 0)
	require.NoError(t, err)

	for i := 0; i < entity.FinalRound; i++ {
		_, err := f.service.AdvanceRound(ctx, contest.ID, "admin:1")
		require.NoError(t, err)
	}

	rounds, err := f.service.ListRounds(ctx, contest.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 4)

	view, err := f.service.GetRound(ctx, contest.ID, entity.FinalRound)
	require.NoError(t, err)
	assert.Len(t, view.Winners, 5)

	_, err = f.service.GetRound(ctx, contest.ID, 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	winners, err := f.service.GetWinners(ctx, contest.ID)
	require.NoError(t, err)
	assert.Len(t, winners, 5)
	for _, w := range winners {
		assert.Equal(t, "player", w.Name)
	}

	page, total, err := f.service.ListParticipants(ctx, contest.ID, 10, 35)
	require.NoError(t, err)
	assert.Equal(t, int64(40), total)
	assert.Len(t, page, 5)
}

func TestContestService_ListHistoryRunsLazyTrigger(t *testing.T) {
	f := newServiceFixture(t, nil, 12)
	ctx := context.Background()

	input := validInput(entity.ContestVariantScheduled)
	input.RegistrationStart = time.Now().Add(-2 * time.Hour)
	input.RegistrationEnd = time.Now().Add(-time.Hour)
	contest, err := f.service.CreateContest(ctx, input, "admin:1")
	require.NoError(t, err)
	_, err = f.store.Participants().RegisterBatch(ctx, contest.ID, []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	require.NoError(t, err)

	history, total, err := f.service.ListHistory(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, history, 1)
	assert.Equal(t, contest.ID, history[0].ID)
	// 12 -> 6 -> 3 -> 3, в финале побеждают все оставшиеся
	assert.Len(t, history[0].WinnerIDs, 3)

	deleted, err := f.service.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestContestService_DeleteContest(t *testing.T) {
	cache := new(MockCacheRepository)
	f := newServiceFixture(t, cache, 3)
	ctx := context.Background()

	contest, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantManual), "admin:1")
	require.NoError(t, err)

	cache.On("Delete", mock.Anything, []string{StatusCacheKey(contest.ID)}).Return(nil).Once()
	require.NoError(t, f.service.DeleteContest(ctx, contest.ID))
	cache.AssertExpectations(t)

	assert.ErrorIs(t, f.service.DeleteContest(ctx, contest.ID), apperrors.ErrNotFound)

	// Удаление под замком конкурса: во время раунда отклоняется
	other, err := f.service.CreateContest(ctx, validInput(entity.ContestVariantManual), "admin:1")
	require.NoError(t, err)
	release, err := f.engine.Acquire(ctx, other.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.service.DeleteContest(ctx, other.ID), contestengine.ErrRoundInProgress)
	release()
}

func TestStatusCacheNotifier(t *testing.T) {
	cache := new(MockCacheRepository)
	next := new(MockNotifier)
	notifier := NewStatusCacheNotifier(cache, next)

	cache.On("Delete", mock.Anything, []string{StatusCacheKey(9)}).Return(nil).Once()
	next.On("NotifyRound", uint(9), contestengine.EventRoundCompleted, "payload").Once()

	notifier.NotifyRound(9, contestengine.EventRoundCompleted, "payload")

	cache.AssertExpectations(t)
	next.AssertExpectations(t)

	// Без кеша и получателя ничего не падает
	NewStatusCacheNotifier(nil, nil).NotifyRound(9, contestengine.EventContestCompleted, nil)
}
