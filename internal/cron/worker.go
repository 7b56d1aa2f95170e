package cron

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/metrics"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/scoring"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

// Advisory lock keys, one per job so a slow RPI recompute on one instance
// does not block rainfall refreshes on another.
const (
	rpiLockKey      int64 = 42
	rainfallLockKey int64 = 43
)

// intervalSettingKey is the settings-table override for the worker cadence.
const intervalSettingKey = "worker_interval"

// Options configure a Worker.
type Options struct {
	// Interval is integer seconds or a cron expression.
	Interval string
	// Provider is the default rainfall provider key.
	Provider string
	// SnapshotTTL bounds how old a cached rainfall snapshot may get
	// before the refresh job refetches it.
	SnapshotTTL time.Duration
}

// Worker periodically recomputes installer reliability scores from job
// history and refreshes cached rainfall normals. Each job runs under a
// PostgreSQL advisory lock so that in a multi-instance deployment only one
// worker executes it; single-instance backends grant the lock uncontended.
type Worker struct {
	store  storage.Storage
	assess *assessment.Service
	opts   Options

	lastAcquires uint64
}

func New(store storage.Storage, opts Options) *Worker {
	return &Worker{
		store: store,
		assess: assessment.NewServiceWithStorage(assessment.Config{
			Provider:    opts.Provider,
			SnapshotTTL: opts.SnapshotTTL,
		}, store),
		opts: opts,
	}
}

// Run blocks until ctx is cancelled. The cadence can be changed at runtime
// through the worker_interval setting; the control loop picks the change
// up within ten seconds.
func (w *Worker) Run(ctx context.Context) error {
	intervalSetting := w.opts.Interval
	if intervalSetting == "" {
		intervalSetting = "3600"
	}

	// Check DB for override
	if val, err := w.store.GetSetting(ctx, intervalSettingKey); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	// Run immediately on a fresh start, then schedule.
	nextRun := time.Now()

	log.Printf("cron: worker starting, setting=%q", intervalSetting)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := w.store.GetSetting(ctx, intervalSettingKey); err == nil && val != "" && val != intervalSetting {
				log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
				intervalSetting = val
				nextRun = nextRunAfter(intervalSetting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			w.runJob(ctx, "recompute_rpi", rpiLockKey, w.recomputeRPI)
			w.runJob(ctx, "refresh_rainfall", rainfallLockKey, w.refreshRainfall)
			w.collectPoolMetrics()

			nextRun = nextRunAfter(intervalSetting, time.Now())
		}
	}
}

// nextRunAfter parses an interval setting as integer seconds, then as a
// cron expression, falling back to one hour.
func nextRunAfter(setting string, from time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return from.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(from)
	}
	return from.Add(time.Hour)
}

func (w *Worker) runJob(ctx context.Context, name string, lockKey int64, job func(context.Context) error) {
	started := time.Now()

	ok, err := w.store.AcquireAdvisoryLock(ctx, lockKey)
	if err != nil {
		log.Printf("cron: acquire advisory lock for %s failed: %v", name, err)
		metrics.UpdateJobMetrics(name, started, err)
		return
	}
	if !ok {
		log.Printf("cron: %s lock held by another worker, skipping run", name)
		return
	}

	var runErr error
	func() {
		defer func() {
			if _, err := w.store.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
				log.Printf("cron: release advisory lock for %s failed: %v", name, err)
			}
		}()
		runErr = job(ctx)
	}()

	metrics.UpdateJobMetrics(name, started, runErr)
	dur := time.Since(started)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := w.store.UpdateScheduledJob(ctx, name, started, dur, runErr == nil, errMsg); err != nil {
		log.Printf("cron: update scheduled_jobs for %s failed: %v", name, err)
	}

	if runErr != nil {
		log.Printf("cron: job %s completed with error: %v (duration=%s)", name, runErr, dur)
	} else {
		log.Printf("cron: job %s completed successfully (duration=%s)", name, dur)
	}
}

// recomputeRPI rebuilds every installer's reliability index from its job
// history and persists the score and grade. A failure on one installer is
// logged and does not stop the sweep.
func (w *Worker) recomputeRPI(ctx context.Context) error {
	installers, err := w.store.ListInstallers(ctx)
	if err != nil {
		return fmt.Errorf("list installers: %w", err)
	}

	var runErr error
	for _, inst := range installers {
		jobs, err := w.store.ListInstallerJobs(ctx, inst.ID)
		if err != nil {
			log.Printf("cron: list jobs for installer %s failed: %v", inst.ID, err)
			if runErr == nil {
				runErr = err
			}
			continue
		}

		comps := scoring.ComponentsFromJobHistory(jobRecords(jobs))
		res, err := scoring.CalculateRPI(comps, scoring.DefaultRPIWeights())
		if err != nil {
			log.Printf("cron: rpi for installer %s failed: %v", inst.ID, err)
			if runErr == nil {
				runErr = err
			}
			continue
		}

		inst.RPIScore = res.Score
		inst.RPIGrade = res.Grade
		inst.UpdatedAt = time.Now()
		if err := w.store.UpsertInstaller(ctx, inst); err != nil {
			log.Printf("cron: save installer %s failed: %v", inst.ID, err)
			if runErr == nil {
				runErr = err
			}
			continue
		}
		metrics.InstallerRPIScore.WithLabelValues(inst.ID).Set(res.Score)
	}
	return runErr
}

// jobRecords converts stored installer jobs into scoring inputs.
func jobRecords(jobs []storage.InstallerJob) []scoring.JobRecord {
	out := make([]scoring.JobRecord, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, scoring.JobRecord{
			JobID:                j.ID,
			DesignMatchPct:       j.DesignMatchPct,
			PredictedYieldLiters: j.PredictedYieldLiters,
			ActualYieldLiters:    j.ActualYieldLiters,
			Completed:            j.Completed,
			OnTime:               j.OnTime,
			Complaints:           j.Complaints,
			MaintenanceDone:      j.MaintenanceDone,
			MaintenanceDue:       j.MaintenanceDue,
		})
	}
	return out
}

// refreshRainfall walks the cached snapshots and refetches any that have
// gone stale. The assessment service applies the TTL, so a fresh entry
// costs a cache read and no provider call.
func (w *Worker) refreshRainfall(ctx context.Context) error {
	snaps, err := w.store.ListRainfallSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	var runErr error
	for _, snap := range snaps {
		var lat, lng float64
		if _, err := fmt.Sscanf(snap.LocationKey, "%f,%f", &lat, &lng); err != nil {
			log.Printf("cron: bad location key %q, skipping", snap.LocationKey)
			continue
		}
		if _, err := w.assess.Rainfall(ctx, snap.Provider, lat, lng); err != nil {
			log.Printf("cron: refresh %s %s failed: %v", snap.Provider, snap.LocationKey, err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	log.Printf("cron: swept %d rainfall locations", len(snaps))
	return runErr
}

// collectPoolMetrics publishes pgx pool gauges when the backend is the
// Postgres pool. The pool's acquire count is cumulative, so only the delta
// since the last cycle is added to the counter.
func (w *Worker) collectPoolMetrics() {
	pg, ok := w.store.(*storage.PostgresPoolStorage)
	if !ok {
		return
	}

	stat := pg.Pool().Stat()
	acquires := uint64(stat.AcquireCount())
	delta := acquires - w.lastAcquires
	w.lastAcquires = acquires

	metrics.UpdateDBPoolMetrics("postgrespool",
		float64(stat.TotalConns()), float64(stat.IdleConns()), float64(stat.AcquiredConns()), delta)
}
