package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage talks to postgres through a pgx connection pool rather
// than GORM. It shares the table layout with GormStorage, so the two can be
// pointed at the same database.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/rainforge?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying pgx pool for metrics collection.
func (s *PostgresPoolStorage) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS installers (
			id TEXT PRIMARY KEY,
			name TEXT,
			region TEXT,
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			max_jobs INTEGER,
			active_jobs INTEGER,
			cost_band INTEGER,
			on_time_pct DOUBLE PRECISION,
			rpi_score DOUBLE PRECISION,
			rpi_grade TEXT,
			suspended BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS installer_jobs (
			id TEXT PRIMARY KEY,
			installer_id TEXT NOT NULL,
			site_id TEXT,
			design_match_pct DOUBLE PRECISION,
			predicted_yield_liters DOUBLE PRECISION,
			actual_yield_liters DOUBLE PRECISION,
			completed BOOLEAN,
			on_time BOOLEAN,
			complaints INTEGER,
			maintenance_done INTEGER,
			maintenance_due INTEGER,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_installer_jobs_installer_id ON installer_jobs (installer_id);`,
		`CREATE TABLE IF NOT EXISTS rainfall_snapshots (
			id SERIAL PRIMARY KEY,
			provider TEXT NOT NULL,
			location_key TEXT NOT NULL,
			payload BYTEA NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rainfall_snapshots_lookup ON rainfall_snapshots (provider, location_key);`,
		`CREATE TABLE IF NOT EXISTS batch_records (
			id TEXT PRIMARY KEY,
			name TEXT,
			scenario TEXT,
			total_sites INTEGER,
			processed_sites INTEGER,
			failed_sites INTEGER,
			payload BYTEA,
			created_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			password_hash TEXT,
			role TEXT,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			name TEXT,
			token_hash TEXT,
			role TEXT,
			created_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			last_used_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS casbin_rules (
			id SERIAL PRIMARY KEY,
			ptype TEXT,
			v0 TEXT,
			v1 TEXT,
			v2 TEXT,
			v3 TEXT,
			v4 TEXT,
			v5 TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS email_configs (
			id TEXT PRIMARY KEY,
			provider TEXT,
			host TEXT,
			port INTEGER,
			username TEXT,
			password TEXT,
			from_address TEXT,
			from_name TEXT,
			api_key TEXT,
			encryption TEXT,
			enabled BOOLEAN,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success INTEGER,
			last_error TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Installers

func (s *PostgresPoolStorage) ListInstallers(ctx context.Context) ([]Installer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, region, lat, lng, max_jobs, active_jobs, cost_band,
		       on_time_pct, rpi_score, rpi_grade, suspended, created_at, updated_at
		FROM installers ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installer
	for rows.Next() {
		var in Installer
		if err := rows.Scan(&in.ID, &in.Name, &in.Region, &in.Lat, &in.Lng,
			&in.MaxJobs, &in.ActiveJobs, &in.CostBand, &in.OnTimePct,
			&in.RPIScore, &in.RPIGrade, &in.Suspended, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) GetInstaller(ctx context.Context, id string) (*Installer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, region, lat, lng, max_jobs, active_jobs, cost_band,
		       on_time_pct, rpi_score, rpi_grade, suspended, created_at, updated_at
		FROM installers WHERE id=$1
	`, id)

	var in Installer
	err := row.Scan(&in.ID, &in.Name, &in.Region, &in.Lat, &in.Lng,
		&in.MaxJobs, &in.ActiveJobs, &in.CostBand, &in.OnTimePct,
		&in.RPIScore, &in.RPIGrade, &in.Suspended, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &in, nil
}

func (s *PostgresPoolStorage) UpsertInstaller(ctx context.Context, in Installer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO installers (id, name, region, lat, lng, max_jobs, active_jobs,
			cost_band, on_time_pct, rpi_score, rpi_grade, suspended, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			region=EXCLUDED.region,
			lat=EXCLUDED.lat,
			lng=EXCLUDED.lng,
			max_jobs=EXCLUDED.max_jobs,
			active_jobs=EXCLUDED.active_jobs,
			cost_band=EXCLUDED.cost_band,
			on_time_pct=EXCLUDED.on_time_pct,
			rpi_score=EXCLUDED.rpi_score,
			rpi_grade=EXCLUDED.rpi_grade,
			suspended=EXCLUDED.suspended,
			updated_at=EXCLUDED.updated_at
	`, in.ID, in.Name, in.Region, in.Lat, in.Lng, in.MaxJobs, in.ActiveJobs,
		in.CostBand, in.OnTimePct, in.RPIScore, in.RPIGrade, in.Suspended,
		in.CreatedAt, in.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) DeleteInstaller(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM installers WHERE id=$1`, id)
	return err
}

// Installer jobs

func (s *PostgresPoolStorage) ListInstallerJobs(ctx context.Context, installerID string) ([]InstallerJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, installer_id, site_id, design_match_pct, predicted_yield_liters,
		       actual_yield_liters, completed, on_time, complaints, maintenance_done,
		       maintenance_due, completed_at, created_at
		FROM installer_jobs WHERE installer_id=$1 ORDER BY created_at
	`, installerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InstallerJob
	for rows.Next() {
		var j InstallerJob
		if err := rows.Scan(&j.ID, &j.InstallerID, &j.SiteID, &j.DesignMatchPct,
			&j.PredictedYieldLiters, &j.ActualYieldLiters, &j.Completed, &j.OnTime,
			&j.Complaints, &j.MaintenanceDone, &j.MaintenanceDue, &j.CompletedAt, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) SaveInstallerJob(ctx context.Context, job InstallerJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO installer_jobs (id, installer_id, site_id, design_match_pct,
			predicted_yield_liters, actual_yield_liters, completed, on_time,
			complaints, maintenance_done, maintenance_due, completed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			installer_id=EXCLUDED.installer_id,
			site_id=EXCLUDED.site_id,
			design_match_pct=EXCLUDED.design_match_pct,
			predicted_yield_liters=EXCLUDED.predicted_yield_liters,
			actual_yield_liters=EXCLUDED.actual_yield_liters,
			completed=EXCLUDED.completed,
			on_time=EXCLUDED.on_time,
			complaints=EXCLUDED.complaints,
			maintenance_done=EXCLUDED.maintenance_done,
			maintenance_due=EXCLUDED.maintenance_due,
			completed_at=EXCLUDED.completed_at
	`, job.ID, job.InstallerID, job.SiteID, job.DesignMatchPct,
		job.PredictedYieldLiters, job.ActualYieldLiters, job.Completed, job.OnTime,
		job.Complaints, job.MaintenanceDone, job.MaintenanceDue, job.CompletedAt, job.CreatedAt)
	return err
}

// Rainfall snapshots

func (s *PostgresPoolStorage) GetRainfallSnapshot(ctx context.Context, provider, locationKey string) (*RainfallSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT payload, fetched_at
		FROM rainfall_snapshots
		WHERE provider=$1 AND location_key=$2
		ORDER BY fetched_at DESC
		LIMIT 1
	`, provider, locationKey)

	var payload []byte
	var fetched time.Time
	if err := row.Scan(&payload, &fetched); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &RainfallSnapshot{
		Provider:    provider,
		LocationKey: locationKey,
		Payload:     payload,
		FetchedAt:   fetched,
	}, nil
}

func (s *PostgresPoolStorage) SaveRainfallSnapshot(ctx context.Context, snap RainfallSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rainfall_snapshots (provider, location_key, payload, fetched_at)
		VALUES ($1,$2,$3,$4)
	`, snap.Provider, snap.LocationKey, snap.Payload, snap.FetchedAt)
	return err
}

func (s *PostgresPoolStorage) ListRainfallSnapshots(ctx context.Context) ([]RainfallSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (provider, location_key) id, provider, location_key, payload, fetched_at
		FROM rainfall_snapshots
		ORDER BY provider, location_key, fetched_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RainfallSnapshot
	for rows.Next() {
		var snap RainfallSnapshot
		if err := rows.Scan(&snap.ID, &snap.Provider, &snap.LocationKey, &snap.Payload, &snap.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Batch records

func (s *PostgresPoolStorage) SaveBatchRecord(ctx context.Context, rec BatchRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batch_records (id, name, scenario, total_sites, processed_sites,
			failed_sites, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			scenario=EXCLUDED.scenario,
			total_sites=EXCLUDED.total_sites,
			processed_sites=EXCLUDED.processed_sites,
			failed_sites=EXCLUDED.failed_sites,
			payload=EXCLUDED.payload
	`, rec.ID, rec.Name, rec.Scenario, rec.TotalSites, rec.ProcessedSites,
		rec.FailedSites, rec.Payload, rec.CreatedAt)
	return err
}

func (s *PostgresPoolStorage) GetBatchRecord(ctx context.Context, id string) (*BatchRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, scenario, total_sites, processed_sites, failed_sites, payload, created_at
		FROM batch_records WHERE id=$1
	`, id)

	var rec BatchRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Scenario, &rec.TotalSites,
		&rec.ProcessedSites, &rec.FailedSites, &rec.Payload, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresPoolStorage) ListBatchRecords(ctx context.Context, limit int) ([]BatchRecord, error) {
	q := `
		SELECT id, name, scenario, total_sites, processed_sites, failed_sites, payload, created_at
		FROM batch_records ORDER BY created_at DESC
	`
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = s.pool.Query(ctx, q+` LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var rec BatchRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Scenario, &rec.TotalSites,
			&rec.ProcessedSites, &rec.FailedSites, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Settings

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
	`, key, value, time.Now())
	return err
}

// Users

func (s *PostgresPoolStorage) CreateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, user.ID, user.Username, user.FirstName, user.LastName, user.Email,
		user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email,
		&u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresPoolStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE id=$1
	`, id))
}

func (s *PostgresPoolStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE username=$1
	`, username))
}

func (s *PostgresPoolStorage) UpdateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET username=$2, first_name=$3, last_name=$4, email=$5,
			password_hash=$6, role=$7, updated_at=$8
		WHERE id=$1
	`, user.ID, user.Username, user.FirstName, user.LastName, user.Email,
		user.PasswordHash, user.Role, time.Now())
	return err
}

func (s *PostgresPoolStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email,
			&u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Tokens

func (s *PostgresPoolStorage) CreateToken(ctx context.Context, token Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, user_id, name, token_hash, role, created_at, expires_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, token.ID, token.UserID, token.Name, token.TokenHash, token.Role,
		token.CreatedAt, token.ExpiresAt, token.LastUsedAt)
	return err
}

func (s *PostgresPoolStorage) scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role,
		&t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at
		FROM tokens WHERE id=$1
	`, id))
}

func (s *PostgresPoolStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at
		FROM tokens WHERE token_hash=$1
	`, hash))
}

func (s *PostgresPoolStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at
		FROM tokens WHERE user_id=$1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role,
			&t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) DeleteToken(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET last_used_at=$2 WHERE id=$1`, id, time.Now())
	return err
}

// Casbin rules

func (s *PostgresPoolStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT ptype, v0, v1, v2, v3, v4, v5 FROM casbin_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CasbinRule
	for rows.Next() {
		var r CasbinRule
		if err := rows.Scan(&r.PType, &r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO casbin_rules (ptype, v0, v1, v2, v3, v4, v5)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5)
	return err
}

func (s *PostgresPoolStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM casbin_rules
		WHERE ptype=$1 AND v0=$2 AND v1=$3 AND v2=$4 AND v3=$5 AND v4=$6 AND v5=$7
	`, rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5)
	return err
}

// Email config

func (s *PostgresPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider, host, port, username, password, from_address, from_name,
		       api_key, encryption, enabled, created_at, updated_at
		FROM email_configs LIMIT 1
	`)

	var c EmailConfig
	err := row.Scan(&c.ID, &c.Provider, &c.Host, &c.Port, &c.Username, &c.Password,
		&c.FromAddress, &c.FromName, &c.APIKey, &c.Encryption, &c.Enabled,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	now := time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}
	config.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_configs (id, provider, host, port, username, password,
			from_address, from_name, api_key, encryption, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			provider=EXCLUDED.provider,
			host=EXCLUDED.host,
			port=EXCLUDED.port,
			username=EXCLUDED.username,
			password=EXCLUDED.password,
			from_address=EXCLUDED.from_address,
			from_name=EXCLUDED.from_name,
			api_key=EXCLUDED.api_key,
			encryption=EXCLUDED.encryption,
			enabled=EXCLUDED.enabled,
			updated_at=EXCLUDED.updated_at
	`, config.ID, config.Provider, config.Host, config.Port, config.Username,
		config.Password, config.FromAddress, config.FromName, config.APIKey,
		config.Encryption, config.Enabled, config.CreatedAt, config.UpdatedAt)
	return err
}

// Scheduled jobs and locking

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, started, dur.Milliseconds(), status, errMsg)
	return err
}

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	return ok, err
}
