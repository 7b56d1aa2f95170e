package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for installers, rainfall snapshots, batch
// records and the platform tables (users, tokens, policies, settings).
// Lookup methods return (nil, nil) when the row does not exist.
type Storage interface {
	// Installers
	ListInstallers(ctx context.Context) ([]Installer, error)
	GetInstaller(ctx context.Context, id string) (*Installer, error)
	UpsertInstaller(ctx context.Context, in Installer) error
	DeleteInstaller(ctx context.Context, id string) error

	// Installer jobs
	ListInstallerJobs(ctx context.Context, installerID string) ([]InstallerJob, error)
	SaveInstallerJob(ctx context.Context, job InstallerJob) error

	// Rainfall snapshots
	GetRainfallSnapshot(ctx context.Context, provider, locationKey string) (*RainfallSnapshot, error)
	SaveRainfallSnapshot(ctx context.Context, snap RainfallSnapshot) error
	// ListRainfallSnapshots returns the latest snapshot per provider and
	// location.
	ListRainfallSnapshots(ctx context.Context) ([]RainfallSnapshot, error)

	// Batch records
	SaveBatchRecord(ctx context.Context, rec BatchRecord) error
	GetBatchRecord(ctx context.Context, id string) (*BatchRecord, error)
	ListBatchRecords(ctx context.Context, limit int) ([]BatchRecord, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Scheduled-job bookkeeping and cross-instance locking
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
