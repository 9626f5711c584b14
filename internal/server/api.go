package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orialabs/voicedeck/internal/calls"
	"github.com/orialabs/voicedeck/internal/config"
	"github.com/orialabs/voicedeck/internal/database"
	"github.com/orialabs/voicedeck/internal/enforcement"
	apierrors "github.com/orialabs/voicedeck/internal/errors"
	"github.com/orialabs/voicedeck/internal/logging"
	"github.com/orialabs/voicedeck/internal/middleware"
	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/orialabs/voicedeck/internal/usage"
	"github.com/orialabs/voicedeck/internal/webhook"
)

// APIServer wires the webhook pipeline and the dashboard read API
type APIServer struct {
	config     *config.Config
	router     *gin.Engine
	db         *database.DB
	verifier   *webhook.Verifier
	limiter    *webhook.RateLimiter
	reconciler *calls.Reconciler
	callStore  calls.Store
	aggregator *usage.Aggregator
	decider    *enforcement.Decider
	processor  *enforcement.Processor
	rollover   *enforcement.Rollover
	queue      enforcement.QueueStore
}

// Deps bundles the pipeline collaborators the server exposes over HTTP
type Deps struct {
	DB         *database.DB
	Verifier   *webhook.Verifier
	Limiter    *webhook.RateLimiter
	Reconciler *calls.Reconciler
	CallStore  calls.Store
	Aggregator *usage.Aggregator
	Decider    *enforcement.Decider
	Processor  *enforcement.Processor
	Rollover   *enforcement.Rollover
	Queue      enforcement.QueueStore
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, deps Deps) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:     cfg,
		router:     router,
		db:         deps.DB,
		verifier:   deps.Verifier,
		limiter:    deps.Limiter,
		reconciler: deps.Reconciler,
		callStore:  deps.CallStore,
		aggregator: deps.Aggregator,
		decider:    deps.Decider,
		processor:  deps.Processor,
		rollover:   deps.Rollover,
		queue:      deps.Queue,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", monitoring.GinHandler())

	// Provider webhook (authenticated by signature, not by session)
	s.router.POST("/webhook/voice", s.handleWebhook)
	s.router.GET("/webhook/voice", s.handleWebhookChallenge)

	// Dashboard read API
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/users/:id/usage", s.handleGetUsage)
		v1.GET("/users/:id/calls", s.handleListCalls)
		v1.GET("/queue", s.handleQueueState)
	}

	// Operational triggers (cron-like external schedulers call these)
	internal := s.router.Group("/internal")
	{
		internal.POST("/rollover", s.handleRollover)
		internal.POST("/queue/process", s.handleProcessQueue)
	}
}

func (s *APIServer) healthCheck(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	requestID := middleware.GetRequestIDFromContext(c)
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, requestID))
}
