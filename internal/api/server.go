package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/vietanh2810/jobshadow-api/docs"
	v1 "github.com/vietanh2810/jobshadow-api/internal/api/handler/v1"
	"github.com/vietanh2810/jobshadow-api/internal/api/middleware"
	"github.com/vietanh2810/jobshadow-api/internal/config"
	"github.com/vietanh2810/jobshadow-api/internal/repository"
	"github.com/vietanh2810/jobshadow-api/internal/repository/dao"
	"github.com/vietanh2810/jobshadow-api/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

type handlers struct {
	auth     *v1.AuthHandler
	user     *v1.UserHandler
	lottery  *v1.LotteryHandler
	feed     *v1.FeedHandler
	settings *v1.SettingsHandler
	report   *v1.ReportHandler
}

// NewServer wires the HTTP surface. The lottery service is built by the
// caller because it shares its lifetime with the job runner.
func NewServer(conf *config.AppConfig, db *gorm.DB, lotterySvc *service.LotteryService, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	userSvc := s.initUserService(db)
	h := handlers{
		auth:     s.initAuthHandler(db),
		user:     v1.NewUserHandler(userSvc),
		lottery:  v1.NewLotteryHandler(lotterySvc, userSvc),
		feed:     v1.NewFeedHandler(lotterySvc, conf.API.AllowedCORSDomains),
		settings: s.initSettingsHandler(db, userSvc),
		report:   s.initReportHandler(db),
	}
	s.MountHandlers(h)

	if gatherer != nil {
		s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewAuthService(repo)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initUserService(db *gorm.DB) *service.UserService {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)

	return service.NewUserService(repo)
}

func (s *Server) initSettingsHandler(db *gorm.DB, userSvc v1.UserService) *v1.SettingsHandler {
	repo := repository.NewSettingsRepository(dao.NewSettingsDAO(db))
	catalog := repository.NewCatalogRepository(dao.NewCatalogDAO(db))
	svc := service.NewSettingsService(repo, catalog)
	handler := v1.NewSettingsHandler(svc, userSvc)

	return handler
}

func (s *Server) initReportHandler(db *gorm.DB) *v1.ReportHandler {
	lotteryRepo := repository.NewLotteryRepository(dao.NewLotteryDAO(db))
	catalog := repository.NewCatalogRepository(dao.NewCatalogDAO(db))
	svc := service.NewReportService(lotteryRepo, catalog)
	handler := v1.NewReportHandler(svc)

	return handler
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(h handlers) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", h.auth.HandleSignup)
		auth.POST("/auth/login", h.auth.HandleLogin)
	}

	private := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		private.GET("/users/me", h.user.HandleGetMe)

		private.POST("/events/:eventID/lottery", h.lottery.HandleStartLottery)
		private.GET("/events/:eventID/lottery/jobs", h.lottery.HandleListJobs)
		private.GET("/events/:eventID/lottery/assignments", h.report.HandleGetLatestAssignments)

		private.GET("/lottery/jobs/:jobID", h.lottery.HandleGetJob)
		private.GET("/lottery/jobs/:jobID/ws", h.feed.HandleJobFeed)
		private.GET("/lottery/jobs/:jobID/assignments", h.report.HandleGetAssignments)
		private.GET("/lottery/jobs/:jobID/unplaced", h.report.HandleGetUnplaced)
		private.GET("/lottery/jobs/:jobID/stats", h.report.HandleGetStats)
		private.POST("/lottery/jobs/:jobID/results", h.lottery.HandleClaim)
		private.DELETE("/lottery/results/:resultID", h.lottery.HandleRelease)

		private.GET("/events/:eventID/manual-assignments", h.settings.HandleListManualAssignments)
		private.PUT("/events/:eventID/manual-assignments/:studentID", h.settings.HandlePutManualAssignment)
		private.DELETE("/events/:eventID/manual-assignments/:studentID", h.settings.HandleDeleteManualAssignment)
		private.GET("/events/:eventID/prefill-quotas", h.settings.HandleListPrefillQuotas)
		private.PUT("/events/:eventID/prefill-quotas/:positionID", h.settings.HandlePutPrefillQuota)
		private.DELETE("/events/:eventID/companies/:companyID/prefill-quotas", h.settings.HandleDeleteCompanyPrefillQuotas)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Job Shadow Lottery API"
	docs.SwaggerInfo.Description = "Assigns students to job shadow positions by lottery."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
