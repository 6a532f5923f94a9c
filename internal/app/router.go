package app

import (
	"aptis_exam_backend/docs"
	"aptis_exam_backend/internal/config"
	"aptis_exam_backend/internal/middleware"
	"aptis_exam_backend/internal/model"

	"aptis_exam_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/me", c.auth.Me)

	// 题库（只读）
	rg.GET("/questions", c.exam.ListQuestions)
	rg.GET("/questions/:id", c.exam.GetQuestion)

	// 考试记录
	rg.POST("/attempts", c.exam.StartAttempt)
	rg.GET("/attempts", c.exam.ListAttempts)
	rg.POST("/attempts/:id/submit", c.exam.SubmitAttempt)
	rg.GET("/attempts/:id/answers", c.answer.ListByAttempt)

	// 答案提交与查询
	rg.POST("/answers/text", c.answer.SubmitText)
	rg.POST("/answers/audio", c.answer.SubmitAudio)
	rg.GET("/answers/:id", c.answer.GetAnswer)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		// 题库管理
		teacher.POST("/questions", c.exam.CreateQuestion)
		teacher.PUT("/questions/:id", c.exam.UpdateQuestion)

		// AI 评分
		teacher.POST("/grading/writing/:id", c.grading.ScoreWriting)
		teacher.POST("/grading/speaking/:id", c.grading.ScoreSpeaking)
		teacher.POST("/grading/regrade", c.grading.Regrade)

		// 人工复核
		teacher.PUT("/answers/:id/grade", c.answer.ManualGrade)

		// 评分细则（读）
		teacher.GET("/criteria", c.criterion.List)
		teacher.GET("/criteria/:id", c.criterion.Get)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		// 评分细则管理
		admin.POST("/criteria", c.criterion.Create)
		admin.PUT("/criteria/:id", c.criterion.Update)
		admin.DELETE("/criteria/:id", c.criterion.Delete)

		// 转写队列管理
		admin.GET("/queue/status", c.queue.Status)
		admin.POST("/queue/clear", c.queue.Clear)
		admin.POST("/queue/enqueue", c.queue.Enqueue)
	}
}
