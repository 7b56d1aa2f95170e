package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStorage implements Storage over GORM with sqlite or postgres behind
// it. It is the default backend for single-node deployments.
type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var dial gorm.Dialector
	switch driver {
	case "postgres", "postgrespool":
		dial = postgres.Open(dsn)
	case "sqlite", "sqlite3":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.AutoMigrate(
		&Installer{},
		&InstallerJob{},
		&RainfallSnapshot{},
		&BatchRecord{},
		&Setting{},
		&User{},
		&Token{},
		&CasbinRule{},
		&EmailConfig{},
		&ScheduledJob{},
	)
}

// firstOrNil wraps the lookup convention of this package: (nil, nil) when
// the row does not exist, the row otherwise.
func firstOrNil[T any](tx *gorm.DB, conds ...interface{}) (*T, error) {
	var row T
	if err := tx.First(&row, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// upsertOn inserts the row, replacing an existing one that conflicts on
// the named columns.
func upsertOn(tx *gorm.DB, row interface{}, cols ...string) error {
	conflict := make([]clause.Column, len(cols))
	for i, c := range cols {
		conflict[i] = clause.Column{Name: c}
	}
	return tx.Clauses(clause.OnConflict{Columns: conflict, UpdateAll: true}).Create(row).Error
}

// Installers

func (s *GormStorage) ListInstallers(ctx context.Context) ([]Installer, error) {
	var installers []Installer
	err := s.db.WithContext(ctx).Order("id").Find(&installers).Error
	return installers, err
}

func (s *GormStorage) GetInstaller(ctx context.Context, id string) (*Installer, error) {
	return firstOrNil[Installer](s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStorage) UpsertInstaller(ctx context.Context, in Installer) error {
	return upsertOn(s.db.WithContext(ctx), &in, "id")
}

func (s *GormStorage) DeleteInstaller(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Installer{}, "id = ?", id).Error
}

// Installer jobs

func (s *GormStorage) ListInstallerJobs(ctx context.Context, installerID string) ([]InstallerJob, error) {
	var jobs []InstallerJob
	err := s.db.WithContext(ctx).Order("created_at").Find(&jobs, "installer_id = ?", installerID).Error
	return jobs, err
}

func (s *GormStorage) SaveInstallerJob(ctx context.Context, job InstallerJob) error {
	return upsertOn(s.db.WithContext(ctx), &job, "id")
}

// Rainfall snapshots

func (s *GormStorage) GetRainfallSnapshot(ctx context.Context, provider, locationKey string) (*RainfallSnapshot, error) {
	tx := s.db.WithContext(ctx).Order("fetched_at desc")
	return firstOrNil[RainfallSnapshot](tx, "provider = ? AND location_key = ?", provider, locationKey)
}

func (s *GormStorage) SaveRainfallSnapshot(ctx context.Context, snap RainfallSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&snap).Error
}

func (s *GormStorage) ListRainfallSnapshots(ctx context.Context) ([]RainfallSnapshot, error) {
	var snaps []RainfallSnapshot
	if err := s.db.WithContext(ctx).Order("fetched_at desc").Find(&snaps).Error; err != nil {
		return nil, err
	}

	// Snapshots append over time; keep only the newest row per provider
	// and location.
	seen := make(map[string]bool)
	out := snaps[:0]
	for _, snap := range snaps {
		key := snap.Provider + "|" + snap.LocationKey
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, snap)
	}
	return out, nil
}

// Batch records

func (s *GormStorage) SaveBatchRecord(ctx context.Context, rec BatchRecord) error {
	return upsertOn(s.db.WithContext(ctx), &rec, "id")
}

func (s *GormStorage) GetBatchRecord(ctx context.Context, id string) (*BatchRecord, error) {
	return firstOrNil[BatchRecord](s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStorage) ListBatchRecords(ctx context.Context, limit int) ([]BatchRecord, error) {
	var recs []BatchRecord
	tx := s.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	err := tx.Find(&recs).Error
	return recs, err
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	setting, err := firstOrNil[Setting](s.db.WithContext(ctx), "key = ?", key)
	if err != nil || setting == nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return upsertOn(s.db.WithContext(ctx), &setting, "key")
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Create(&user).Error
}

func (s *GormStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return firstOrNil[User](s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return firstOrNil[User](s.db.WithContext(ctx), "username = ?", username)
}

func (s *GormStorage) UpdateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Save(&user).Error
}

func (s *GormStorage) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&User{}, "id = ?", id).Error
}

func (s *GormStorage) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.WithContext(ctx).Find(&users).Error
	return users, err
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	return firstOrNil[Token](s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	return firstOrNil[Token](s.db.WithContext(ctx), "token_hash = ?", hash)
}

func (s *GormStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	var tokens []Token
	err := s.db.WithContext(ctx).Find(&tokens, "user_id = ?", userID).Error
	return tokens, err
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Token{}, "id = ?", id).Error
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", time.Now()).Error
}

// Casbin rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	err := s.db.WithContext(ctx).Find(&rules).Error
	return rules, err
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Where(&rule).Delete(&CasbinRule{}).Error
}

// Email config

func (s *GormStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	return firstOrNil[EmailConfig](s.db.WithContext(ctx))
}

func (s *GormStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	// Single config row, whatever ID the caller sent.
	config.ID = "default"
	return upsertOn(s.db.WithContext(ctx), &config, "id")
}

// Scheduled jobs and locking

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return upsertOn(s.db.WithContext(ctx), &job, "name")
}

// AcquireAdvisoryLock takes a Postgres advisory lock so only one worker
// instance runs scheduled jobs. Other dialects report success; a single
// instance is assumed there.
func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		return true, nil
	}
	return s.pgBool(ctx, "SELECT pg_try_advisory_lock(?)", key)
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		return true, nil
	}
	return s.pgBool(ctx, "SELECT pg_advisory_unlock(?)", key)
}

func (s *GormStorage) pgBool(ctx context.Context, query string, key int64) (bool, error) {
	var ok bool
	err := s.db.WithContext(ctx).Raw(query, key).Scan(&ok).Error
	return ok, err
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
