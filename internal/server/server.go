package server

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/ai/embed"
	"github.com/archivelab/testimony/internal/ai/transcribe"
	"github.com/archivelab/testimony/internal/config"
	"github.com/archivelab/testimony/internal/discovery"
	"github.com/archivelab/testimony/internal/notify"
	"github.com/archivelab/testimony/internal/pipeline"
	"github.com/archivelab/testimony/internal/store"
)

type Server struct {
	Store        *store.MemgraphStore
	Orchestrator *pipeline.Orchestrator
	Engine       *discovery.Engine
	cfg          *config.Config
	log          *logrus.Entry
}

// NewServer wires the full application: config, store, AI adapters,
// notification dispatcher, pipeline orchestrator, and discovery engine.
func NewServer(log *logrus.Entry) (*Server, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Warnf("could not load %s, using defaults", cfgPath)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	st, err := store.NewMemgraphStore(cfg.Store.URI, cfg.Store.User, cfg.Store.Password, log)
	if err != nil {
		return nil, err
	}
	if err := st.BuildIndices(context.Background()); err != nil {
		log.WithError(err).Warn("could not build store indices")
	}

	embedder, err := embed.New(cfg.Embedding, log)
	if err != nil {
		return nil, err
	}
	transcriber := transcribe.New(cfg.Transcription, log)

	dispatcher := notify.NewDispatcher(
		&notify.LogNotifier{Log: log},
		&notify.LogEmailSender{Log: log},
		log,
	)

	engine := discovery.NewEngine(st, st, st, dispatcher, cfg.Discovery, log)
	orchestrator := pipeline.NewOrchestrator(st, st, transcriber, embedder, engine,
		dispatcher, cfg.Pipeline, cfg.Embedding.Model, log)

	return &Server{
		Store:        st,
		Orchestrator: orchestrator,
		Engine:       engine,
		cfg:          cfg,
		log:          log.WithField("module", "server"),
	}, nil
}

func (s *Server) Port() string { return s.cfg.Server.Port }

func (s *Server) Close(ctx context.Context) error {
	return s.Store.Close(ctx)
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.Health)

	r.POST("/testimonies/:id/process", s.ProcessTestimony)
	r.POST("/testimonies/:id/discover", s.DiscoverConnections)
	r.GET("/testimonies/:id/connections", s.ListConnections)
	r.POST("/connections/rate", s.RateConnection)

	r.POST("/admin/process-pending", s.ProcessPending)
	r.POST("/admin/retry-failed", s.RetryFailed)
	r.POST("/admin/rebuild-connections", s.RebuildConnections)
	r.GET("/admin/connection-quality", s.ConnectionQuality)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ProcessTestimony runs the pipeline for one testimony. The call blocks
// until a concurrency slot frees up and the pipeline finishes.
func (s *Server) ProcessTestimony(c *gin.Context) {
	id := c.Param("id")
	if err := s.Orchestrator.Process(c.Request.Context(), id); err != nil {
		s.log.WithError(err).WithField("testimony_id", id).Error("processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process testimony"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DiscoverConnections recomputes the connection set for one testimony and
// reports how many edges were written.
func (s *Server) DiscoverConnections(c *gin.Context) {
	id := c.Param("id")
	n, err := s.Engine.Discover(c.Request.Context(), id)
	if err != nil {
		s.log.WithError(err).WithField("testimony_id", id).Error("discovery failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to discover connections"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "connections": n})
}

func (s *Server) ListConnections(c *gin.Context) {
	id := c.Param("id")
	conns, err := s.Store.ListFrom(c.Request.Context(), id)
	if err != nil {
		s.log.WithError(err).WithField("testimony_id", id).Error("listing connections failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list connections"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

type RateConnectionRequest struct {
	FromID string `json:"from_id" binding:"required"`
	ToID   string `json:"to_id" binding:"required"`
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
}

// RateConnection records a 1-5 user rating on both directions of an edge.
// Ratings feed the adaptive thresholds and pin the edge across recomputes.
func (s *Server) RateConnection(c *gin.Context) {
	var req RateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	if err := s.Store.Rate(ctx, req.FromID, req.ToID, req.Rating); err != nil {
		s.log.WithError(err).Error("rating failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rate connection"})
		return
	}
	if err := s.Store.Rate(ctx, req.ToID, req.FromID, req.Rating); err != nil {
		s.log.WithError(err).Error("rating mirror edge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rate connection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) ProcessPending(c *gin.Context) {
	n, err := s.Orchestrator.ProcessPending(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("pending sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process pending testimonies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "processed": n})
}

func (s *Server) RetryFailed(c *gin.Context) {
	n, err := s.Orchestrator.RetryFailed(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("retry sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry transcriptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "retried": n})
}

func (s *Server) RebuildConnections(c *gin.Context) {
	n, err := s.Engine.RebuildAll(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("connection rebuild failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rebuild connections"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "connections": n})
}

// ConnectionQuality reports per-type edge statistics and the semantic
// thresholds currently in effect after rating feedback.
func (s *Server) ConnectionQuality(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := s.Store.TypeStats(ctx)
	if err != nil {
		s.log.WithError(err).Error("quality report failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build quality report"})
		return
	}
	thresholds, err := s.Engine.Thresholds(ctx)
	if err != nil {
		s.log.WithError(err).Error("quality report failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build quality report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
		"thresholds": gin.H{
			"strong":   thresholds.Strong,
			"moderate": thresholds.Moderate,
			"weak":     thresholds.Weak,
		},
	})
}
