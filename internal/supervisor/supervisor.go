// Package supervisor drives the orchestrator in a periodic loop: run every
// download root, publish counters and the retention sweep, then sleep until
// the next deadline - abortable by a manual trigger and rebased live when
// the repeat interval changes in the settings store.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/cineripr/releasepipeline/internal/config"
	"github.com/cineripr/releasepipeline/internal/fileops"
	"github.com/cineripr/releasepipeline/internal/pipeline"
	"github.com/cineripr/releasepipeline/internal/settings"
	"github.com/cineripr/releasepipeline/internal/tracker"
)

// DefaultIntervalMinutes replaces a persisted zero or negative repeat
// interval.
const DefaultIntervalMinutes = 30

// Runner is the slice of the orchestrator the loop drives.
type Runner interface {
	ProcessDownloads(ctx context.Context) pipeline.Result
}

// Loop is the top-level supervisor.
type Loop struct {
	configGetter config.ConfigGetter
	settings     *settings.Store
	tracker      *tracker.Tracker
	ops          *fileops.Operator
	runner       Runner
	log          *slog.Logger

	// Timing knobs, shrunk by tests.
	tick          time.Duration // poll granularity during sleep
	settingsEvery time.Duration // how often the KV is re-read during sleep
	minute        time.Duration // one interval unit
}

// New wires the supervisor loop.
func New(configGetter config.ConfigGetter, store *settings.Store, track *tracker.Tracker, ops *fileops.Operator, runner Runner, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		configGetter:  configGetter,
		settings:      store,
		tracker:       track,
		ops:           ops,
		runner:        runner,
		log:           log.With("component", "supervisor"),
		tick:          time.Second,
		settingsEvery: 30 * time.Second,
		minute:        time.Minute,
	}
}

// currentInterval reads the repeat interval from the KV, enforcing the
// 1-minute floor and the 30-minute default for unusable values.
func (l *Loop) currentInterval() int {
	v := l.settings.Int("repeat_after_minutes")
	if v <= 0 {
		return DefaultIntervalMinutes
	}
	return v
}

// Run executes the loop until repeat mode is off or ctx is cancelled. The
// returned exit code is 0 for clean passes and 2 when archives or cleanups
// failed.
func (l *Loop) Run(ctx context.Context) int {
	exitCode := 0

	interval := l.currentInterval()
	repeat := l.settings.Bool("repeat_forever")
	l.tracker.SetRepeatMode(repeat, interval)
	l.log.Info("Repeat mode", "enabled", repeat, "interval_minutes", interval)

	for {
		if code := l.runOnce(ctx); code > exitCode {
			exitCode = code
		}
		if ctx.Err() != nil {
			return exitCode
		}

		if !l.settings.Bool("repeat_forever") {
			return exitCode
		}

		l.sleepPhase(ctx)
		if ctx.Err() != nil {
			return exitCode
		}
	}
}

// Start launches Run on its own goroutine, delivering the exit code on the
// returned channel.
func (l *Loop) Start(ctx context.Context) <-chan int {
	done := make(chan int, 1)
	var wg conc.WaitGroup
	wg.Go(func() {
		done <- l.Run(ctx)
	})
	go wg.Wait()
	return done
}

// runOnce performs one full pass: orchestrator, counters, retention sweep.
// A panic anywhere in the body is caught, logged, and the loop continues
// to the sleep phase.
func (l *Loop) runOnce(ctx context.Context) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Unexpected error in main loop", "panic", fmt.Sprint(r))
			l.tracker.AddLog("ERROR", fmt.Sprintf("Unexpected error: %v", r))
			l.tracker.StopProcessing()
		}
	}()

	l.tracker.StartProcessing()
	result := l.runner.ProcessDownloads(ctx)

	l.tracker.UpdateCounts(tracker.Counts{
		Processed:     result.Processed,
		Failed:        len(result.Failed),
		Unsupported:   len(result.Unsupported),
		Deleted:       -1,
		CleanupFailed: -1,
	})
	l.tracker.StopProcessing()

	cfg := l.configGetter()
	l.tracker.UpdateSystemHealth(tracker.CollectSystemHealth(
		firstOrEmpty(cfg.Paths.DownloadRoots), cfg.Paths.ExtractedRoot, cfg.Paths.FinishedRoot, ""))

	enableDelete := l.settings.Bool("enable_delete")
	demoMode := l.settings.Bool("demo_mode")
	retentionDays := l.settings.Int("finished_retention_days")

	var cleanup fileops.CleanupResult
	if enableDelete || demoMode {
		cleanup = l.ops.CleanupFinished(cfg.Paths.FinishedRoot, retentionDays, enableDelete, demoMode)
		l.tracker.UpdateCounts(tracker.Counts{
			Processed: -1, Failed: -1, Unsupported: -1,
			Deleted:       len(cleanup.Deleted),
			CleanupFailed: len(cleanup.Failed),
		})
	} else {
		l.log.Info("Delete disabled and demo mode off: skipping finished cleanup scan")
	}

	l.log.Info("Processed archives", "count", result.Processed)
	logPathSummary(l.log, slog.LevelError, "Failed archives", result.Failed)
	logPathSummary(l.log, slog.LevelWarn, "Unsupported files", result.Unsupported)
	logPathSummary(l.log, slog.LevelInfo, "Deleted finished files", cleanup.Deleted)
	logPathSummary(l.log, slog.LevelInfo, "Skipped finished files", cleanup.Skipped)
	logPathSummary(l.log, slog.LevelError, "Failed to clean finished directory", cleanup.Failed)

	if result.Processed > 0 {
		l.tracker.AddNotification("success", "Processing Complete",
			fmt.Sprintf("Successfully processed %d archive(s)", result.Processed))
	}

	if len(result.Failed) > 0 || len(cleanup.Failed) > 0 {
		return 2
	}
	return 0
}

// sleepPhase waits out the repeat interval, polling every tick for the
// manual trigger and re-reading the KV every settingsEvery for a changed
// interval - a change rebases the deadline to now + new interval rather
// than extending the old one.
func (l *Loop) sleepPhase(ctx context.Context) {
	delay := l.currentInterval()
	l.tracker.SetNextRun(delay)
	l.log.Info("Next run scheduled", "minutes", delay)
	l.tracker.AddLog("INFO", fmt.Sprintf("Next run in %d minute(s)", delay))

	defer l.tracker.ClearNextRun()

	if l.tracker.ShouldTriggerNow() {
		l.log.Info("Manual trigger received - starting run now")
		l.tracker.AddLog("INFO", "Manual trigger - starting immediately")
		return
	}

	deadline := time.Now().Add(time.Duration(delay) * l.minute)
	lastSettingsCheck := time.Now()
	lastMinuteLogged := -1

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.tick):
		}

		if l.tracker.ShouldTriggerNow() {
			l.log.Info("Manual trigger received - starting run now")
			l.tracker.AddLog("INFO", "Manual trigger - starting immediately")
			return
		}

		if time.Since(lastSettingsCheck) >= l.settingsEvery {
			lastSettingsCheck = time.Now()
			newDelay := l.currentInterval()
			if newDelay != delay {
				l.log.Info(fmt.Sprintf("Settings changed during sleep: %d → %d minutes", delay, newDelay))
				delay = newDelay
				l.tracker.SetRepeatMode(l.settings.Bool("repeat_forever"), delay)
				l.tracker.SetNextRun(delay)
				deadline = time.Now().Add(time.Duration(delay) * l.minute)
				l.log.Info("Next run rescheduled", "minutes", delay)
			}
		}

		if remaining := time.Until(deadline); remaining > 0 {
			if mins := int(remaining / l.minute); mins != lastMinuteLogged {
				lastMinuteLogged = mins
				if mins > 0 {
					l.log.Debug("Sleeping until next run", "minutes_left", mins)
				}
			}
		}
	}
}

func firstOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}

func logPathSummary(log *slog.Logger, level slog.Level, label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	log.Log(context.Background(), level, label, "count", len(paths), "first", paths[0])
}
