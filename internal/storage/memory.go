package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu         sync.RWMutex
	installers map[string]Installer
	jobs       map[string][]InstallerJob
	snaps      map[string]RainfallSnapshot
	batches    map[string]BatchRecord
	settings   map[string]string
	users      map[string]User
	tokens     map[string]Token
	rules      []CasbinRule
	email      *EmailConfig
	schedJobs  map[string]ScheduledJob
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		installers: make(map[string]Installer),
		jobs:       make(map[string][]InstallerJob),
		snaps:      make(map[string]RainfallSnapshot),
		batches:    make(map[string]BatchRecord),
		settings:   make(map[string]string),
		users:      make(map[string]User),
		tokens:     make(map[string]Token),
		schedJobs:  make(map[string]ScheduledJob),
	}
}

// NewMemoryWithInstallers creates an in-memory store seeded with installers,
// so demo deployments have a marketplace without a database.
func NewMemoryWithInstallers(installers []Installer) *MemoryStorage {
	m := NewMemory()
	for _, in := range installers {
		m.installers[in.ID] = in
	}
	return m
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Installers

func (m *MemoryStorage) ListInstallers(ctx context.Context) ([]Installer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Installer, 0, len(m.installers))
	for _, in := range m.installers {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) GetInstaller(ctx context.Context, id string) (*Installer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.installers[id]
	if !ok {
		return nil, nil
	}
	cp := in
	return &cp, nil
}

func (m *MemoryStorage) UpsertInstaller(ctx context.Context, in Installer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installers[in.ID] = in
	return nil
}

func (m *MemoryStorage) DeleteInstaller(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.installers, id)
	return nil
}

// Installer jobs

func (m *MemoryStorage) ListInstallerJobs(ctx context.Context, installerID string) ([]InstallerJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := m.jobs[installerID]
	out := make([]InstallerJob, len(jobs))
	copy(out, jobs)
	return out, nil
}

func (m *MemoryStorage) SaveInstallerJob(ctx context.Context, job InstallerJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := m.jobs[job.InstallerID]
	for i := range jobs {
		if jobs[i].ID == job.ID {
			jobs[i] = job
			return nil
		}
	}
	m.jobs[job.InstallerID] = append(jobs, job)
	return nil
}

// Rainfall snapshots

func snapKey(provider, locationKey string) string {
	return provider + "|" + locationKey
}

func (m *MemoryStorage) GetRainfallSnapshot(ctx context.Context, provider, locationKey string) (*RainfallSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snaps[snapKey(provider, locationKey)]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *MemoryStorage) SaveRainfallSnapshot(ctx context.Context, snap RainfallSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	m.snaps[snapKey(snap.Provider, snap.LocationKey)] = snap
	return nil
}

func (m *MemoryStorage) ListRainfallSnapshots(ctx context.Context) ([]RainfallSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RainfallSnapshot, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].LocationKey < out[j].LocationKey
	})
	return out, nil
}

// Batch records

func (m *MemoryStorage) SaveBatchRecord(ctx context.Context, rec BatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.batches[rec.ID] = rec
	return nil
}

func (m *MemoryStorage) GetBatchRecord(ctx context.Context, id string) (*BatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.batches[id]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (m *MemoryStorage) ListBatchRecords(ctx context.Context, limit int) ([]BatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]BatchRecord, 0, len(m.batches))
	for _, rec := range m.batches {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := t
	return &cp, nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return nil
	}
	now := time.Now()
	t.LastUsedAt = &now
	m.tokens[id] = t
	return nil
}

// Casbin rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CasbinRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := m.rules[:0]
	for _, r := range m.rules {
		if r.PType == rule.PType && r.V0 == rule.V0 && r.V1 == rule.V1 &&
			r.V2 == rule.V2 && r.V3 == rule.V3 && r.V4 == rule.V4 && r.V5 == rule.V5 {
			continue
		}
		keep = append(keep, r)
	}
	m.rules = keep
	return nil
}

// Email config

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.email == nil {
		return nil, nil
	}
	cp := *m.email
	return &cp, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if config.ID == "" {
		config.ID = "default"
	}
	m.email = &config
	return nil
}

// Scheduled jobs and locking

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := 0
	if success {
		status = 1
	}
	m.schedJobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

// Single-process store, so the lock is always free.
func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}
