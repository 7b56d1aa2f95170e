package storage

import "time"

// Installer is an empanelled contractor eligible for bids and job
// allocation.
type Installer struct {
	ID         string    `json:"id" gorm:"primaryKey;column:id"`
	Name       string    `json:"name" gorm:"column:name"`
	Region     string    `json:"region" gorm:"column:region"`
	Lat        float64   `json:"lat" gorm:"column:lat"`
	Lng        float64   `json:"lng" gorm:"column:lng"`
	MaxJobs    int       `json:"max_jobs" gorm:"column:max_jobs"`
	ActiveJobs int       `json:"active_jobs" gorm:"column:active_jobs"`
	CostBand   int       `json:"cost_band" gorm:"column:cost_band"`
	OnTimePct  float64   `json:"on_time_pct" gorm:"column:on_time_pct"`
	RPIScore   float64   `json:"rpi_score" gorm:"column:rpi_score"`
	RPIGrade   string    `json:"rpi_grade" gorm:"column:rpi_grade"`
	Suspended  bool      `json:"suspended" gorm:"column:suspended"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// InstallerJob is one installation engagement; completed jobs feed the
// installer's reliability index.
type InstallerJob struct {
	ID                   string     `json:"id" gorm:"primaryKey;column:id"`
	InstallerID          string     `json:"installer_id" gorm:"index;column:installer_id"`
	SiteID               string     `json:"site_id" gorm:"column:site_id"`
	DesignMatchPct       *float64   `json:"design_match_pct,omitempty" gorm:"column:design_match_pct"`
	PredictedYieldLiters float64    `json:"predicted_yield_liters" gorm:"column:predicted_yield_liters"`
	ActualYieldLiters    float64    `json:"actual_yield_liters" gorm:"column:actual_yield_liters"`
	Completed            bool       `json:"completed" gorm:"column:completed"`
	OnTime               bool       `json:"on_time" gorm:"column:on_time"`
	Complaints           int        `json:"complaints" gorm:"column:complaints"`
	MaintenanceDone      int        `json:"maintenance_done" gorm:"column:maintenance_done"`
	MaintenanceDue       int        `json:"maintenance_due" gorm:"column:maintenance_due"`
	CompletedAt          *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	CreatedAt            time.Time  `json:"created_at" gorm:"column:created_at"`
}

// RainfallSnapshot caches a provider's rainfall profile payload for a
// rounded coordinate key.
type RainfallSnapshot struct {
	ID          uint      `json:"-" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"`
	LocationKey string    `json:"location_key" gorm:"column:location_key"`
	Payload     []byte    `json:"payload" gorm:"column:payload"`
	FetchedAt   time.Time `json:"fetched_at" gorm:"column:fetched_at"`
}

// BatchRecord persists a completed batch run with its full result payload.
type BatchRecord struct {
	ID             string    `json:"id" gorm:"primaryKey;column:id"`
	Name           string    `json:"name" gorm:"column:name"`
	Scenario       string    `json:"scenario" gorm:"column:scenario"`
	TotalSites     int       `json:"total_sites" gorm:"column:total_sites"`
	ProcessedSites int       `json:"processed_sites" gorm:"column:processed_sites"`
	FailedSites    int       `json:"failed_sites" gorm:"column:failed_sites"`
	Payload        []byte    `json:"payload" gorm:"column:payload"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at"`
}

// Setting is a single key/value configuration row.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the last outcome of a background worker job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}

// User is an operator account. Role is the casbin subject used for
// RBAC checks.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	FirstName    string    `json:"first_name" gorm:"column:first_name"`
	LastName     string    `json:"last_name" gorm:"column:last_name"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token is a personal API token. Only the SHA-256 hash is stored; the
// raw value is shown once at creation.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule is one policy line in casbin's storage schema.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig is the single mail delivery settings row, edited through
// the notifications API.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // smtp, sendgrid or resend
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"` // sendgrid and resend
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // none, ssl or tls
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
