package commands

// Command to run the payout engine as a long-lived scheduled service
// Fires one distribution at PAYOUT_TIME every day in SCHEDULE_TZ
// Catches up a missed run on startup and serves Prometheus metrics when configured
// Implements graceful shutdown for proper termination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payout-engine/internal/audit"
	"payout-engine/internal/config"
	"payout-engine/internal/features/distribution"
	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/metrics"
	"payout-engine/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled daily payout distributions",
	Long: `Run the payout engine as a long-lived service. A distribution fires at
PAYOUT_TIME every day in the SCHEDULE_TZ timezone. When the daemon starts
after today's payout time and no record exists for today, it catches up
immediately. METRICS_ADDR enables a Prometheus endpoint.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Payout.DryRun {
		if err := cfg.ValidateLive(); err != nil {
			return fmt.Errorf("invalid live configuration: %w", err)
		}
	}

	hour, minute, err := config.ParseClockTime(cfg.Schedule.PayoutTime)
	if err != nil {
		return fmt.Errorf("invalid payout time: %w", err)
	}
	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("invalid schedule timezone: %w", err)
	}
	sched, err := scheduler.New(hour, minute, location)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner, err := buildRunner(cfg, metrics.Sink{})
	if err != nil {
		return err
	}
	writer := audit.NewWriter(cfg.Storage.DataDir)

	var wg sync.WaitGroup
	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = startMetricsServer(&wg, cfg.Metrics.Addr)
	}

	logging.LogSuccess("Payout daemon started",
		zap.String("schedule", sched.String()),
		zap.Bool("dryRun", cfg.Payout.DryRun),
		zap.String("metricsAddr", cfg.Metrics.Addr))

	catchUpMissedRun(ctx, runner, writer, sched)
	runScheduleLoop(ctx, runner, sched)

	logging.LogInfo("Shutdown signal received, gracefully stopping payout daemon...")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.LogWarn("Metrics server shutdown failed", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.LogSuccess("Payout daemon stopped gracefully")
	case <-time.After(10 * time.Second):
		logging.LogWarn("Timeout waiting for daemon to stop, forcing shutdown")
	}

	return nil
}

// catchUpMissedRun fires a distribution when today's occurrence already
// passed and no record exists for today, so a daemon restarted after its
// payout time does not skip the day.
func catchUpMissedRun(ctx context.Context, runner *distribution.Runner, writer *audit.Writer, sched *scheduler.Schedule) {
	now := time.Now()
	occurrence := sched.Occurrence(now)
	if now.Before(occurrence) {
		return
	}

	ran, err := writer.HasRunOn(occurrence)
	if err != nil {
		logging.LogWarn("Failed to check for today's audit record, skipping catch-up", zap.Error(err))
		return
	}
	if ran {
		logging.LogInfo("Today's payout already recorded, no catch-up needed")
		return
	}

	logging.LogInfo("Payout time already passed with no record for today, catching up",
		zap.Time("occurrence", occurrence))
	if _, err := runner.RunOnce(ctx); err != nil {
		logging.LogError("Catch-up payout run failed", zap.Error(err))
	}
}

// runScheduleLoop fires a run at every occurrence until the context is
// cancelled. The next occurrence is recomputed after every run, so DST
// shifts in the schedule's timezone are honored.
func runScheduleLoop(ctx context.Context, runner *distribution.Runner, sched *scheduler.Schedule) {
	for {
		next := sched.Next(time.Now())
		logging.LogInfo("Next payout scheduled",
			zap.Time("next", next),
			zap.Duration("in", time.Until(next)))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := runner.RunOnce(ctx); err != nil {
			// One failed day must not kill the service; the next
			// occurrence still fires.
			logging.LogError("Scheduled payout run failed", zap.Error(err))
		}
	}
}

func startMetricsServer(wg *sync.WaitGroup, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.LogInfo("Metrics server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}
