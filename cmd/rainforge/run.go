package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/alerting"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/api"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/auth"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/batch"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/config"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/cron"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/migrate"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/notification"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

func runServe(portOverride string, withWorker bool) error {
	cfg := config.FromEnv()
	if portOverride != "" {
		cfg.Port = portOverride
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.DBDriver,
		DSN:         cfg.DBDSN,
		AutoMigrate: cfg.AutoMigrate,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	var authSvc *auth.Service
	if cfg.AuthEnabled {
		authSvc, err = auth.NewService(st)
		if err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
		log.Printf("serve: authentication enabled")
	}

	var alerter *alerting.Alerter
	if cfg.AlertWebhookURL != "" {
		alerter = alerting.NewAlerter(alerting.ConfigFor(cfg.AlertWebhookURL, cfg.AlertWebhookType))
		log.Printf("serve: batch failure alerts enabled")
	}

	assessSvc := assessment.NewServiceWithStorage(assessment.Config{
		Provider:    cfg.RainfallProvider,
		SnapshotTTL: cfg.SnapshotTTL,
	}, st)

	mux := api.NewMux(api.Options{
		Store:        st,
		Assessment:   assessSvc,
		Auth:         authSvc,
		Notification: notification.NewService(st),
		Alerter:      alerter,
		BatchWorkers: cfg.BatchWorkers,
	})

	if withWorker {
		w := cron.New(st, cron.Options{
			Interval:    cfg.WorkerInterval,
			Provider:    cfg.RainfallProvider,
			SnapshotTTL: cfg.SnapshotTTL,
		})
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serve: worker stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("rainforge listening on %s", srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("rainforge shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runWorker() error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.DBDriver,
		DSN:         cfg.DBDSN,
		AutoMigrate: cfg.AutoMigrate,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	w := cron.New(st, cron.Options{
		Interval:    cfg.WorkerInterval,
		Provider:    cfg.RainfallProvider,
		SnapshotTTL: cfg.SnapshotTTL,
	})
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runMigrate(direction, driver, dsn string) error {
	cfg := config.FromEnv()
	if driver == "" {
		driver = cfg.DBDriver
	}
	if dsn == "" {
		dsn = cfg.DBDSN
	}

	ctx := context.Background()
	switch direction {
	case "up":
		return migrate.Up(ctx, driver, dsn)
	case "down":
		return migrate.Down(ctx, driver, dsn)
	case "status":
		return migrate.Status(ctx, driver, dsn)
	default:
		return fmt.Errorf("unknown migration direction %q (want up, down or status)", direction)
	}
}

func runAssess(req assessment.SiteRequest, compare bool) error {
	cfg := config.FromEnv()
	svc := assessment.NewService(assessment.Config{
		Provider:    cfg.RainfallProvider,
		SnapshotTTL: cfg.SnapshotTTL,
	})
	ctx := context.Background()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if compare {
		res, err := svc.CompareScenarios(ctx, req)
		if err != nil {
			return err
		}
		return enc.Encode(res)
	}

	res, err := svc.AssessSite(ctx, req)
	if err != nil {
		return err
	}
	return enc.Encode(res)
}

func runBatch(csvPath, name, scenario string, workers int, outPath string) error {
	cfg := config.FromEnv()

	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	sites, warnings, err := batch.ParseSitesCSV(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", csvPath, err)
	}
	for _, msg := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}

	svc := assessment.NewService(assessment.Config{
		Provider:    cfg.RainfallProvider,
		SnapshotTTL: cfg.SnapshotTTL,
	})
	source := func(ctx context.Context, lat, lng float64) (*rainfall.Profile, error) {
		return svc.Rainfall(ctx, "", lat, lng)
	}

	orch := batch.NewOrchestrator(source, workers)
	res, err := orch.Process(context.Background(), batch.Request{
		Name:     name,
		Scenario: scenario,
		Sites:    sites,
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		of, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer of.Close()
		out = of
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "assessed %d sites: %d ok, %d failed in %dms\n",
		res.TotalSites, res.ProcessedSites, res.FailedSites, res.DurationMS)
	return nil
}
