package app

import (
	"aptis_exam_backend/internal/config"
	"aptis_exam_backend/internal/controller"
	"aptis_exam_backend/internal/repository"
	"aptis_exam_backend/internal/service"
	"aptis_exam_backend/pkg/database"
	"aptis_exam_backend/pkg/logger"
	"aptis_exam_backend/pkg/monitoring"
	"aptis_exam_backend/pkg/security"
	"aptis_exam_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	question  *repository.QuestionRepository
	answer    *repository.AnswerRepository
	criterion *repository.CriterionRepository
	feedback  *repository.FeedbackRepository
	attempt   *repository.AttemptRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	ai        *service.AIService
	speech    *service.SpeechService
	grading   *service.GradingService
	queue     *service.TranscriptionQueueService
	answer    *service.AnswerService
	criterion *service.CriterionService
	exam      *service.ExamService
}

type controllers struct {
	auth      *controller.AuthController
	answer    *controller.AnswerController
	grading   *controller.GradingController
	queue     *controller.QueueController
	criterion *controller.CriterionController
	exam      *controller.ExamController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，由 configwatcher 触发
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		question:  repository.NewQuestionRepository(db),
		answer:    repository.NewAnswerRepository(db),
		criterion: repository.NewCriterionRepository(db, rdb, cfg.Grading.CriteriaCacheTTL),
		feedback:  repository.NewFeedbackRepository(db),
		attempt:   repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.ai = service.NewAIService(cfg.AI)
	s.speech = service.NewSpeechService(cfg.Speech)

	scorer := service.NewCriterionScorer(s.ai, cfg.AI)
	s.grading = service.NewGradingService(repos.answer, repos.question, repos.criterion, scorer, s.speech, s.storage)

	s.queue = service.NewTranscriptionQueueService(s.speech, repos.answer, cfg.Grading)
	s.answer = service.NewAnswerService(repos.answer, repos.feedback, s.grading, s.queue, s.storage)

	// 转写完成后自动续接评分
	s.queue.SetCompletionHandler(s.answer.HandleTranscriptionComplete)

	s.criterion = service.NewCriterionService(repos.criterion)
	s.exam = service.NewExamService(repos.question, repos.attempt)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		answer:    controller.NewAnswerController(s.answer),
		grading:   controller.NewGradingController(s.grading, s.answer),
		queue:     controller.NewQueueController(s.queue, s.answer),
		criterion: controller.NewCriterionController(s.criterion),
		exam:      controller.NewExamController(s.exam, s.auth),
		health:    controller.NewHealthController(db, s.queue),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 10000
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb, cfg)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db)

	// 队列参数支持热更新
	app.RegisterConfigCallback(func(c *config.Config) {
		services.queue.UpdateConfig(c.Grading)
	})

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("aptis-exam-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
		router.Static("/api/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 丢弃未完成的转写任务，避免关停期间继续调用外部服务
	if a.services != nil && a.services.queue != nil {
		dropped := a.services.queue.ClearQueue()
		if dropped > 0 {
			logger.Log.Info("dropped pending transcription jobs on shutdown", zap.Int("count", dropped))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
