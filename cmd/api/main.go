package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/yourusername/contest-api/internal/config"
	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	"github.com/yourusername/contest-api/internal/handler"
	"github.com/yourusername/contest-api/internal/middleware"
	memRepo "github.com/yourusername/contest-api/internal/repository/memory"
	pgRepo "github.com/yourusername/contest-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/contest-api/internal/repository/redis"
	"github.com/yourusername/contest-api/internal/service"
	"github.com/yourusername/contest-api/internal/service/contestengine"
	ws "github.com/yourusername/contest-api/internal/websocket"
	"github.com/yourusername/contest-api/pkg/database"
)

// repositories - набор репозиториев выбранного драйвера хранилища
type repositories struct {
	contests     repository.ContestRepository
	participants repository.ParticipantRepository
	rounds       repository.RoundRepository
	users        repository.UserRepository
	close        func()
}

func main() {
	// .env не обязателен, переменные окружения могут быть заданы снаружи
	if err := godotenv.Load(); err != nil {
		log.Printf(".env не загружен: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openRepositories(cfg)
	if err != nil {
		log.Printf("Failed to initialize storage: %v", err)
		os.Exit(1)
	}
	defer repos.close()

	// Redis необязателен: без него нет кеша статуса, распределённой блокировки и rate limiting
	var redisClient redis.UniversalClient
	if cfg.Redis.Configured() {
		redisClient, err = database.NewUniversalRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Printf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	} else {
		log.Println("Redis не настроен, работаем в режиме одного инстанса без кеша")
	}

	var cacheRepo repository.CacheRepository
	var locker contestengine.DistributedLocker
	var pubSubProvider ws.PubSubProvider = &ws.NoOpPubSub{}
	if redisClient != nil {
		cache, err := redisRepo.NewCacheRepo(redisClient)
		if err != nil {
			log.Printf("Failed to initialize CacheRepo: %v", err)
			os.Exit(1)
		}
		cacheRepo = cache

		contestLocker, err := redisRepo.NewContestLocker(redisClient, "", cfg.Contest.LockTTL)
		if err != nil {
			log.Printf("Failed to initialize ContestLocker: %v", err)
			os.Exit(1)
		}
		locker = contestLocker

		if cfg.WebSocket.Cluster.Enabled {
			provider, err := ws.NewRedisPubSub(ctx, redisClient)
			if err != nil {
				log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Кластеризация WS будет неактивна.", err)
			} else {
				pubSubProvider = provider
			}
		}
	}

	// --- WebSocket ---
	wsHub := ws.NewHub()
	clusterHub := ws.NewClusterHub(cfg.WebSocket.Cluster, pubSubProvider, wsHub.BroadcastToContest)
	if err := clusterHub.Start(); err != nil {
		log.Printf("Failed to start websocket cluster hub: %v", err)
		os.Exit(1)
	}
	wsManager := ws.NewManager(wsHub, clusterHub)

	// --- Движок конкурсов ---
	engineConfig := contestengine.DefaultConfig()
	engineConfig.TickInterval = cfg.Contest.TickInterval
	engineConfig.InterRoundDelay = cfg.Contest.InterRoundDelay
	engineConfig.LazyInterRoundDelay = cfg.Contest.LazyInterRoundDelay
	engineConfig.MaxIterations = cfg.Contest.MaxIterations
	engineConfig.RetryBackoff = cfg.Contest.RetryBackoff
	engineConfig.SystemActorID = cfg.Contest.SystemActorID
	engineConfig.DisplayLimit = cfg.Contest.DisplayLimit

	engine := contestengine.NewEngine(&contestengine.Dependencies{
		ContestRepo:     repos.contests,
		ParticipantRepo: repos.participants,
		UserRepo:        repos.users,
		Notifier:        service.NewStatusCacheNotifier(cacheRepo, wsManager),
		Locker:          locker,
		Config:          engineConfig,
	})
	advancer := contestengine.NewAutoAdvancer(engine)
	if err := advancer.Start(ctx); err != nil {
		log.Printf("Failed to start auto-advancer: %v", err)
		os.Exit(1)
	}

	contestService := service.NewContestService(
		repos.contests, repos.participants, repos.rounds, repos.users,
		cacheRepo, engine, advancer,
		service.ContestServiceConfig{
			StatusCacheTTL:      cfg.Contest.StatusCacheTTL,
			LazyAdvanceEnabled:  cfg.Contest.LazyAdvanceEnabled,
			LazyInterRoundDelay: cfg.Contest.LazyInterRoundDelay,
			DisplayLimit:        cfg.Contest.DisplayLimit,
		},
	)

	contestHandler := handler.NewContestHandler(contestService)
	wsHandler := handler.NewWSHandler(wsManager, contestService,
		ws.ClientConfigFrom(cfg.WebSocket), cfg.Server.AllowedOrigins)

	// --- HTTP ---
	router := gin.Default()
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Printf("Failed to set trusted proxies: %v", err)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.ActorHeader, handler.ViewerHeader},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	var advanceLimiter []gin.HandlerFunc
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter := middleware.NewRateLimiter(middleware.NewRedisWindowCounter(redisClient))
		advanceLimiter = append(advanceLimiter,
			limiter.Limit(middleware.AdvanceRateLimitConfig(cfg.RateLimit.AdvanceLimit, cfg.RateLimit.AdvanceWindow)))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "viewers": wsHub.ClientCount()})
	})
	api := router.Group("/api")
	contestHandler.RegisterRoutes(api, advanceLimiter...)
	router.GET("/ws", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Останавливаем фоновые проходы до закрытия хранилища
	cancel()
	if err := advancer.Stop(); err != nil {
		log.Printf("Error stopping auto-advancer: %v", err)
	}
	clusterHub.Stop()
	wsHub.Close()
	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}

	log.Println("Server exited properly")
}

// openRepositories открывает хранилище согласно database.driver
func openRepositories(cfg *config.Config) (*repositories, error) {
	if cfg.Database.Driver == config.DatabaseDriverMemory {
		log.Printf("Используется in-memory хранилище (%d демо-пользователей). Данные не сохраняются между перезапусками.",
			cfg.Database.MemorySeedUsers)
		store := memRepo.NewStore(demoUsers(cfg.Database.MemorySeedUsers))
		return &repositories{
			contests:     store.Contests(),
			participants: store.Participants(),
			rounds:       store.Rounds(),
			users:        store.Users(),
			close:        func() {},
		}, nil
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), gin.Mode() != gin.ReleaseMode)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &repositories{
		contests:     pgRepo.NewContestRepo(db),
		participants: pgRepo.NewParticipantRepo(db),
		rounds:       pgRepo.NewRoundRepo(db),
		users:        pgRepo.NewUserRepo(db),
		close: func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}, nil
}

func demoUsers(n int) []entity.User {
	users := make([]entity.User, 0, n)
	for i := 1; i <= n; i++ {
		users = append(users, entity.User{
			ID:          uint(i),
			Username:    fmt.Sprintf("player%03d", i),
			DisplayName: fmt.Sprintf("Player %d", i),
			Role:        entity.UserRoleUser,
		})
	}
	return users
}
