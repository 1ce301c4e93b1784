package contestengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// AutoAdvancer доводит до конца конкурсы с истёкшим окном регистрации.
// Каждый конкурс обрабатывается в своей горутине, поэтому зависший конкурс
// не задерживает остальные и не блокирует следующий тик.
type AutoAdvancer struct {
	engine *Engine
	config *Config

	scheduler gocron.Scheduler
	runCtx    context.Context
	cancel    context.CancelFunc

	// Конкурсы, которые сейчас доводятся до конца (тик или ленивый триггер)
	inFlight sync.Map // map[uint]struct{}
	wg       sync.WaitGroup

	now func() time.Time
}

// NewAutoAdvancer создает автопродвижение поверх движка
func NewAutoAdvancer(engine *Engine) *AutoAdvancer {
	return &AutoAdvancer{
		engine: engine,
		config: engine.config,
		now:    time.Now,
	}
}

// Start запускает периодический тик
func (a *AutoAdvancer) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	a.runCtx, a.cancel = context.WithCancel(ctx)
	_, err = scheduler.NewJob(
		gocron.DurationJob(a.config.TickInterval),
		gocron.NewTask(func() {
			a.Tick(a.runCtx)
		}),
		gocron.WithName("contest-auto-advance"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		a.cancel()
		return fmt.Errorf("register auto-advance job: %w", err)
	}

	a.scheduler = scheduler
	scheduler.Start()
	log.Printf("[AutoAdvancer] Запущен, интервал тика %v", a.config.TickInterval)
	return nil
}

// Stop останавливает тик и ждёт завершения начатых проходов
func (a *AutoAdvancer) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	var err error
	if a.scheduler != nil {
		err = a.scheduler.Shutdown()
	}
	a.wg.Wait()
	log.Println("[AutoAdvancer] Остановлен")
	return err
}

// Wait ждёт завершения всех запущенных тиком проходов
func (a *AutoAdvancer) Wait() {
	a.wg.Wait()
}

// Tick находит просроченные конкурсы и запускает по горутине на каждый свободный.
// Возвращает количество запущенных проходов.
func (a *AutoAdvancer) Tick(ctx context.Context) int {
	contests, err := a.engine.deps.ContestRepo.ListExpiredAutoAdvance(ctx, a.now())
	if err != nil {
		log.Printf("[AutoAdvancer] Ошибка поиска просроченных конкурсов: %v", err)
		return 0
	}

	started := 0
	for _, contest := range contests {
		contestID := contest.ID
		// Раунд уже идёт (ручной вызов): конкурс подхватит следующий тик
		if a.engine.Busy(contestID) {
			log.Printf("[AutoAdvancer] Конкурс #%d занят, пропускаем до следующего тика", contestID)
			continue
		}
		if !a.claim(contestID) {
			continue
		}
		started++
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer a.unclaim(contestID)
			if err := a.DriveToCompletion(ctx, contestID, a.config.InterRoundDelay); err != nil {
				log.Printf("[AutoAdvancer] Конкурс #%d будет повторён на следующем тике: %v", contestID, err)
			}
		}()
	}
	return started
}

// AdvanceExpired синхронно доводит до конца просроченные конкурсы, которые сейчас
// никто не обрабатывает. Используется ленивым триггером из read-запросов.
func (a *AutoAdvancer) AdvanceExpired(ctx context.Context, delay time.Duration) (int, error) {
	contests, err := a.engine.deps.ContestRepo.ListExpiredAutoAdvance(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("list expired contests: %w", err)
	}

	var wg sync.WaitGroup
	driven := 0
	for _, contest := range contests {
		contestID := contest.ID
		if !a.claim(contestID) {
			continue
		}
		driven++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer a.unclaim(contestID)
			if err := a.DriveToCompletion(ctx, contestID, delay); err != nil {
				log.Printf("[AutoAdvancer] Ленивое продвижение конкурса #%d не завершено: %v", contestID, err)
			}
		}()
	}
	wg.Wait()
	return driven, nil
}

// DriveToCompletion вызывает AdvanceOneRound до завершения конкурса,
// но не более MaxIterations раз.
func (a *AutoAdvancer) DriveToCompletion(ctx context.Context, contestID uint, delay time.Duration) error {
	actor := a.config.SystemActorID

	for i := 0; i < a.config.MaxIterations; i++ {
		result, err := a.engine.AdvanceOneRound(ctx, contestID, actor)
		switch {
		case err == nil:
			if result.IsComplete {
				return nil
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		case errors.Is(err, ErrAlreadyCompleted):
			return nil
		case errors.Is(err, ErrNoActiveParticipants):
			if err := a.engine.ForceComplete(ctx, contestID); err != nil && !errors.Is(err, ErrAlreadyCompleted) {
				return err
			}
			return nil
		case errors.Is(err, ErrRoundInProgress):
			if err := sleepCtx(ctx, a.config.RetryBackoff); err != nil {
				return err
			}
		default:
			return err
		}
	}

	return fmt.Errorf("contest #%d not completed after %d attempts", contestID, a.config.MaxIterations)
}

func (a *AutoAdvancer) claim(contestID uint) bool {
	_, busy := a.inFlight.LoadOrStore(contestID, struct{}{})
	return !busy
}

func (a *AutoAdvancer) unclaim(contestID uint) {
	a.inFlight.Delete(contestID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
