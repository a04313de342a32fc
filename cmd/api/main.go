package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"courier-dialer/internal/agent"
	"courier-dialer/internal/auth"
	"courier-dialer/internal/config"
	"courier-dialer/internal/dialogue"
	"courier-dialer/internal/history"
	"courier-dialer/internal/knowledge"
	"courier-dialer/internal/speech"
	"courier-dialer/internal/telephony"
	"courier-dialer/pkg/logger"
	"courier-dialer/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(auth.ManagerConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.JWTIssuer,
		Audience:   cfg.Auth.JWTAudience,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	gemini, err := dialogue.NewGemini(rootCtx, dialogue.GeminiConfig{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
	})
	if err != nil {
		log.Error("gemini init failed", "err", err)
		os.Exit(1)
	}

	voximplant, err := telephony.NewVoximplant(telephony.VoximplantConfig{
		AccountID:       cfg.Voximplant.AccountID,
		APIKey:          cfg.Voximplant.APIKey,
		RuleID:          cfg.Voximplant.RuleID,
		SMSSourceNumber: cfg.Voximplant.SMSSourceNumber,
	}, log)
	if err != nil {
		log.Error("voximplant init failed", "err", err)
		os.Exit(1)
	}

	var speechProvider speech.Provider
	if cfg.SaluteConfigured() {
		sp, err := speech.NewSalute(speech.SaluteConfig{
			Credentials: cfg.Salute.Credentials,
			Language:    cfg.Salute.Language,
			Voice:       cfg.Salute.Voice,
			SampleRate:  cfg.Salute.SampleRate,
		}, log)
		if err != nil {
			log.Error("salute speech init failed", "err", err)
			os.Exit(1)
		}
		speechProvider = sp
	} else {
		log.Info("speech disabled, media stream is text-only")
	}

	var kb knowledge.Base = knowledge.Nop{}
	if cfg.QdrantConfigured() {
		qdrant, err := knowledge.NewQdrant(knowledge.QdrantConfig{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			VectorSize: cfg.Qdrant.VectorSize,
		}, gemini, log)
		if err != nil {
			log.Error("qdrant init failed", "err", err)
			os.Exit(1)
		}
		if err := qdrant.EnsureCollection(rootCtx); err != nil {
			log.Error("qdrant collection init failed", "err", err)
			os.Exit(1)
		}
		kb = qdrant
	} else {
		log.Info("knowledge base disabled")
	}

	var historyRepo history.Repository = history.NewMemoryRepo()
	if cfg.DBConfigured() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		historyRepo = history.NewPostgresRepo(db)
	} else {
		log.Info("postgres disabled, call history stays in memory")
	}
	historySvc := history.NewService(historyRepo)

	var limiter agent.LineLimiter = agent.NewMemoryLimiter(cfg.Agent.MaxConcurrentCalls)
	if cfg.RedisConfigured() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = agent.NewRedisLimiter(rdb, "dialer:lines", cfg.Agent.MaxConcurrentCalls, 10*time.Minute)
	} else {
		log.Info("redis disabled, call line cap is per-process")
	}

	callAgent, err := agent.New(agent.Config{
		AgentName:     cfg.Agent.Name,
		CompanyName:   cfg.Agent.CompanyName,
		MaxTurns:      cfg.Agent.MaxTurns,
		ContextBudget: cfg.Agent.ContextBudget,
	}, gemini, voximplant, kb, historySvc, log)
	if err != nil {
		log.Error("agent init failed", "err", err)
		os.Exit(1)
	}
	callAgent.SetOnCallCompleted(func(s agent.Snapshot) {
		log.Info("call completed",
			"session_id", s.ID, "executor_id", s.Executor.ID,
			"order_id", s.Order.ID, "result", s.Result, "turns", s.Turns)
	})

	dialer := agent.NewDialer(callAgent, limiter, cfg.Agent.DialAnswerTimeout)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		auth:      authManager,
		agent:     callAgent,
		dialer:    dialer,
		history:   historySvc,
		telephony: voximplant,
		speech:    speechProvider,
		log:       log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: order dispatch blocks until the ring-around
		// settles, and media streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
