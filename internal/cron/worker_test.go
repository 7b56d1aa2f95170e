package cron

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

type fixtureProvider struct {
	calls atomic.Int64
}

func (p *fixtureProvider) Key() string       { return "cronfixture" }
func (p *fixtureProvider) Name() string      { return "Cron Fixture" }
func (p *fixtureProvider) SourceURL() string { return "https://example.com" }

func (p *fixtureProvider) Normals(ctx context.Context, lat, lng float64) (*rainfall.Profile, error) {
	p.calls.Add(1)
	var monthly [12]float64
	for i := range monthly {
		monthly[i] = 50
	}
	return &rainfall.Profile{
		MonthlyMM: monthly,
		AnnualMM:  600,
		Source:    "Cron Fixture",
		FetchedAt: time.Now(),
	}, nil
}

var fixture = &fixtureProvider{}

func init() {
	rainfall.Register(fixture)
}

func TestNextRunAfter(t *testing.T) {
	from := time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC)

	if got := nextRunAfter("300", from); !got.Equal(from.Add(5 * time.Minute)) {
		t.Errorf("seconds setting: got %v", got)
	}

	got := nextRunAfter("0 3 * * *", from)
	want := time.Date(2026, 6, 2, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("cron setting: got %v, want %v", got, want)
	}

	if got := nextRunAfter("soonish", from); !got.Equal(from.Add(time.Hour)) {
		t.Errorf("bad setting should fall back to an hour: got %v", got)
	}
}

func TestRecomputeRPI(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	design := 90.0
	if err := store.UpsertInstaller(ctx, storage.Installer{ID: "inst-good", Name: "AquaHarvest"}); err != nil {
		t.Fatalf("seed installer: %v", err)
	}
	if err := store.UpsertInstaller(ctx, storage.Installer{ID: "inst-new", Name: "FreshCo"}); err != nil {
		t.Fatalf("seed installer: %v", err)
	}
	if err := store.SaveInstallerJob(ctx, storage.InstallerJob{
		ID:                   "job-1",
		InstallerID:          "inst-good",
		DesignMatchPct:       &design,
		PredictedYieldLiters: 1000,
		ActualYieldLiters:    900,
		Completed:            true,
		OnTime:               true,
		MaintenanceDone:      1,
		MaintenanceDue:       1,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	w := New(store, Options{})
	if err := w.recomputeRPI(ctx); err != nil {
		t.Fatalf("recomputeRPI: %v", err)
	}

	// design 90, yield accuracy 90, timeliness 100, complaints 0,
	// maintenance 100 under weights .25/.25/.20/.15/.15.
	good, err := store.GetInstaller(ctx, "inst-good")
	if err != nil {
		t.Fatalf("get installer: %v", err)
	}
	if math.Abs(good.RPIScore-95) > 1e-9 {
		t.Errorf("inst-good score = %v, want 95", good.RPIScore)
	}
	if good.RPIGrade != "A+" {
		t.Errorf("inst-good grade = %q, want A+", good.RPIGrade)
	}

	// No history falls back to the documented defaults.
	fresh, err := store.GetInstaller(ctx, "inst-new")
	if err != nil {
		t.Fatalf("get installer: %v", err)
	}
	if math.Abs(fresh.RPIScore-72.75) > 1e-9 {
		t.Errorf("inst-new score = %v, want 72.75", fresh.RPIScore)
	}
	if fresh.RPIGrade != "B" {
		t.Errorf("inst-new grade = %q, want B", fresh.RPIGrade)
	}
}

func TestRefreshRainfall(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	before := fixture.calls.Load()

	stale := time.Now().Add(-2 * time.Hour)
	if err := store.SaveRainfallSnapshot(ctx, storage.RainfallSnapshot{
		Provider:    "cronfixture",
		LocationKey: "28.60,77.20",
		Payload:     []byte(`{"annual_mm":100,"source":"old"}`),
		FetchedAt:   stale,
	}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	if err := store.SaveRainfallSnapshot(ctx, storage.RainfallSnapshot{
		Provider:    "cronfixture",
		LocationKey: "19.10,72.85",
		Payload:     []byte(`{"annual_mm":600,"source":"Cron Fixture"}`),
		FetchedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	w := New(store, Options{SnapshotTTL: time.Hour})
	if err := w.refreshRainfall(ctx); err != nil {
		t.Fatalf("refreshRainfall: %v", err)
	}

	// Only the stale location hits the provider.
	if calls := fixture.calls.Load() - before; calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", calls)
	}

	snap, err := store.GetRainfallSnapshot(ctx, "cronfixture", "28.60,77.20")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if time.Since(snap.FetchedAt) > time.Minute {
		t.Errorf("stale snapshot was not rewritten: fetched at %v", snap.FetchedAt)
	}
}

func TestRefreshRainfallSkipsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	if err := store.SaveRainfallSnapshot(ctx, storage.RainfallSnapshot{
		Provider:    "cronfixture",
		LocationKey: "pune",
		Payload:     []byte(`{}`),
		FetchedAt:   time.Now().Add(-48 * time.Hour),
	}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	w := New(store, Options{SnapshotTTL: time.Hour})
	if err := w.refreshRainfall(ctx); err != nil {
		t.Fatalf("bad keys should be skipped, not fatal: %v", err)
	}
}
