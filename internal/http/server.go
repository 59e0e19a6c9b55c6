package http

import (
	"log"
	"net/http"
	"time"

	"docflow/internal/config"
	"docflow/internal/http/auth"
	"docflow/internal/http/common"
	documenthttp "docflow/internal/http/documents"
	reviewhttp "docflow/internal/http/reviews"
	"docflow/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg           config.Config
	r             *gin.Engine
	lifecycle     *usecase.LifecycleService
	reviews       *usecase.ReviewService
	authenticator common.Authenticator
	authorizer    common.Authorizer
	clock         func() time.Time
}

type ServerDeps struct {
	Lifecycle     *usecase.LifecycleService
	Reviews       *usecase.ReviewService
	Authenticator common.Authenticator
	Authorizer    common.Authorizer
	Clock         func() time.Time
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:           cfg,
		r:             r,
		lifecycle:     deps.Lifecycle,
		reviews:       deps.Reviews,
		authenticator: deps.Authenticator,
		authorizer:    deps.Authorizer,
		clock:         deps.Clock,
	}
	if s.authenticator == nil {
		s.authenticator = auth.NewHeaderAuthenticator()
	}
	if s.authorizer == nil {
		s.authorizer = auth.NewAuthorizer()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	addr := s.cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("docflow-api listening on %s", addr)
	return s.r.Run(addr)
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	documentHandler := documenthttp.NewHandler(s.lifecycle, s.reviews, s.clock)
	reviewHandler := reviewhttp.NewHandler(s.reviews, s.clock)

	v1 := s.r.Group("/v1")
	{
		require := func(permission string) gin.HandlerFunc {
			return common.AuthMiddleware(s.authenticator, s.authorizer, permission)
		}

		v1.POST("/documents", require(auth.PermDocumentWrite), documentHandler.HandleCreate)
		v1.GET("/documents/:id", require(auth.PermDocumentRead), documentHandler.HandleGet)
		v1.DELETE("/documents/:id", require(auth.PermDocumentWrite), documentHandler.HandleDelete)
		v1.POST("/documents/:id/submit", require(auth.PermDocumentWrite), documentHandler.HandleSubmit)
		v1.POST("/documents/:id/reopen", require(auth.PermDocumentWrite), documentHandler.HandleReopen)
		v1.POST("/documents/:id/expiry-check", require(auth.PermDocumentWrite), documentHandler.HandleCheckExpiry)
		v1.GET("/documents/:id/versions", require(auth.PermDocumentRead), documentHandler.HandleListVersions)
		v1.GET("/documents/:id/reviews", require(auth.PermDocumentRead), documentHandler.HandleListReviews)
		v1.POST("/documents/:id/reviews", require(auth.PermDocumentWrite), documentHandler.HandleAssignReviewer)
		v1.GET("/documents/:id/audit", require(auth.PermDocumentRead), documentHandler.HandleAuditTrail)

		v1.GET("/reviews/overdue", require(auth.PermDocumentRead), reviewHandler.HandleListOverdue)
		v1.GET("/reviews/:id", require(auth.PermDocumentRead), reviewHandler.HandleGet)
		v1.POST("/reviews/:id/decision", require(auth.PermReviewWrite), reviewHandler.HandleDecide)
		v1.POST("/reviews/:id/complete", require(auth.PermReviewWrite), reviewHandler.HandleComplete)
		v1.PUT("/reviews/:id/comment", require(auth.PermReviewWrite), reviewHandler.HandleUpdateComment)
	}
}
