package commands

import (
	"fmt"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/profile"
	"github.com/wonny/vnvalue/pkg/config"
	"github.com/wonny/vnvalue/pkg/httputil"
	"github.com/wonny/vnvalue/pkg/logger"
	"github.com/wonny/vnvalue/pkg/redis"
)

const redisPrefix = "vnvalue"

// deps holds everything the commands share
type deps struct {
	cfg     *config.Config
	log     *logger.Logger
	redis   *redis.Client
	engine  *engine.Client
	profile *profile.Profile
}

// bootstrap loads config, logger, Redis, the engine client and the profile
func bootstrap() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if engineURL != "" {
		cfg.Engine.BaseURL = engineURL
	}
	if profilePath != "" {
		cfg.ProfilePath = profilePath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	rc, err := redis.New(cfg)
	if err != nil {
		// Redis is optional; fall back to the in-process limiter and memory prefs
		log.WithError(err).Warn("Redis unavailable, continuing without it")
		cfg.Redis.Enabled = false
		rc, _ = redis.New(cfg)
	}

	httpClient := httputil.New(cfg, log)
	if rc.Enabled() && cfg.Engine.RateLimit > 0 {
		limiter := redis.NewRateLimiter(rc, redisPrefix).Bind(redis.EngineRateLimit(cfg.Engine.RateLimit))
		httpClient.WithLimiter(limiter)
	}

	prof, err := profile.LoadOrDefault(cfg.ProfilePath)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("load profile: %w", err)
	}
	for _, w := range profile.Warn(prof) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	return &deps{
		cfg:     cfg,
		log:     log,
		redis:   rc,
		engine:  engine.NewClient(httpClient, log, cfg.Engine.BaseURL),
		profile: prof,
	}, nil
}

// Close releases the Redis connection
func (d *deps) Close() {
	d.redis.Close()
}
