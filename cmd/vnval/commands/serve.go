package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vnvalue/internal/api"
	"github.com/wonny/vnvalue/internal/api/handlers"
	"github.com/wonny/vnvalue/internal/prefs"
	"github.com/wonny/vnvalue/internal/scheduler"
	"github.com/wonny/vnvalue/internal/scheduler/jobs"
	"github.com/wonny/vnvalue/internal/session"
	"github.com/wonny/vnvalue/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BFF API server",
	Long: `Start the HTTP API that the browser front end talks to.

This command:
- serves the valuation session over REST and WebSocket
- polls the engine health in the background (remote engines only)
- stores the theme preference in Redis when enabled

Endpoints:
  GET  /health
  GET  /api/session
  POST /api/session/load
  POST /api/session/calculate
  PUT  /api/session/weights/{model}
  POST /api/session/weights/normalize
  PUT  /api/session/assumptions
  GET  /api/session/report?format=text|markdown|html|json
  GET  /api/session/charts/{kind}.png
  GET  /api/preferences/theme
  PUT  /api/preferences/theme
  POST /api/preferences/theme/toggle
  GET  /api/engine/health
  GET  /ws

Example:
  go run ./cmd/vnval serve
  go run ./cmd/vnval serve --port 8080`,
	RunE: runServe,
}

var (
	servePort string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== vnvalue API Server ===")

	// 1. Config, logger, Redis, engine client, profile
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	if servePort != "" {
		d.cfg.Port = servePort
	}
	log := d.log

	log.WithFields(map[string]interface{}{
		"port":    d.cfg.Port,
		"env":     d.cfg.Env,
		"engine":  d.cfg.Engine.BaseURL,
		"profile": d.profile.Meta.ProfileID,
	}).Info("Initializing API server")

	// 2. Session
	sess := session.New(d.engine, session.Config{
		LoadTimeout: d.cfg.Engine.LoadTimeout,
		CalcTimeout: d.cfg.Engine.CalcTimeout,
		NoticeTTL:   d.cfg.Session.NoticeTTL,
		Profile:     d.profile,
	}, log)

	// 3. Preferences
	prefStore := prefs.New(redis.NewStore(d.redis, redisPrefix), log)

	// 4. Scheduler with the engine health job
	sched := scheduler.New(log)
	healthJob := jobs.NewHealthJob(d.engine, d.cfg.Engine.HealthSchedule, log)
	polling, err := jobs.RegisterHealthJob(sched, healthJob, d.cfg.Engine.BaseURL)
	if err != nil {
		return fmt.Errorf("register health job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// 5. WebSocket hub
	hub := handlers.NewSnapshotHub(sess, d.cfg.CORSOrigin, log)
	go hub.Run()
	defer hub.Stop()

	// 6. Router and server
	router := api.NewRouter(api.Handlers{
		Session:     handlers.NewSessionHandler(sess, log),
		Report:      handlers.NewReportHandler(sess, d.profile, log),
		Preferences: handlers.NewPreferenceHandler(prefStore, log),
		Engine:      handlers.NewEngineHandler(healthJob, sched, d.cfg.Engine.BaseURL, polling),
		Hub:         hub,
	}, d.cfg.CORSOrigin, log)

	server := api.New(d.cfg, log, router)

	// 7. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.WithField("session_id", sess.ID()).Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	if !polling {
		PrintInfo("Local engine detected, background health polling disabled")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
