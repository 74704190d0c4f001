package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseConfig holds configuration required to connect to a Supabase project.
//
// The transcript pipeline uses Supabase two ways: the project's Postgres for
// status rows and the advisory lock, and Supabase Storage for gzip transcript
// artifacts. The SDK (URL + key) is required; the direct Postgres connection
// is built from ConnectionString or Password.
type SupabaseConfig struct {
	// ConnectionString is the Supabase Postgres connection string. If not
	// provided, it is constructed from SupabaseURL and Password.
	ConnectionString string

	// SupabaseURL is the project URL, e.g. "https://[project-ref].supabase.co".
	SupabaseURL string

	// SupabaseKey is the API key; use the service_role key server-side.
	SupabaseKey string

	// Password is the database password (not the API key).
	Password string

	// Optional pool tuning knobs.
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// SupabaseClient provides access to the Supabase Postgres database and SDK.
type SupabaseClient struct {
	db          *sql.DB
	supabaseSDK *supabase.Client
	cfg         SupabaseConfig
}

// NewSupabaseClient constructs a Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect initializes the SDK client and, when credentials allow, the direct
// Postgres connection. The SDK alone is enough for storage uploads; status
// rows and the advisory lock need the direct connection.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.cfg.SupabaseURL == "" || c.cfg.SupabaseKey == "" {
		return fmt.Errorf("supabase URL and key are required")
	}

	sdkClient, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.SupabaseKey, nil)
	if err != nil {
		return fmt.Errorf("initialize supabase SDK: %w", err)
	}
	c.supabaseSDK = sdkClient

	connStr := c.cfg.ConnectionString
	if connStr == "" && c.cfg.Password != "" {
		connStr, err = c.buildConnectionString()
		if err != nil {
			return fmt.Errorf("build connection string: %w", err)
		}
	}
	if connStr == "" {
		// Storage-only mode: callers needing the DB must check HasDirectDB.
		return nil
	}

	// Simple protocol and no statement cache: the worker runs short-lived
	// parallel statements and pooled prepared statements conflict.
	connStr = addConnectionParam(connStr, "statement_cache_capacity", "0")
	connStr = addConnectionParam(connStr, "default_query_exec_mode", "simple_protocol")

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("open supabase postgres: %w", err)
	}

	if c.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.cfg.MaxOpenConns)
	}
	if c.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.cfg.MaxIdleConns)
	}
	if c.cfg.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(c.cfg.ConnMaxIdle)
	}
	if c.cfg.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(c.cfg.ConnMaxLife)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping supabase postgres: %w", err)
	}

	c.db = db
	return nil
}

// Close closes the database connection.
func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying sql.DB handle. Nil in storage-only mode.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

// HasDirectDB reports whether a direct database connection is available.
func (c *SupabaseClient) HasDirectDB() bool {
	return c.db != nil
}

// SDK returns the Supabase SDK client (storage, auth, etc.).
func (c *SupabaseClient) SDK() *supabase.Client {
	return c.supabaseSDK
}

// buildConnectionString constructs a Postgres connection string from the
// project URL and database password.
func (c *SupabaseClient) buildConnectionString() (string, error) {
	parsedURL, err := url.Parse(c.cfg.SupabaseURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}

	// Host format: [project-ref].supabase.co
	parts := strings.Split(parsedURL.Host, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid supabase URL format: expected [project-ref].supabase.co")
	}
	projectRef := parts[0]

	encodedPassword := url.QueryEscape(c.cfg.Password)
	connStr := fmt.Sprintf(
		"postgresql://postgres:%s@db.%s.supabase.co:5432/postgres?sslmode=require",
		encodedPassword, projectRef,
	)
	return connStr, nil
}

// addConnectionParam adds a query parameter to the connection string if not
// already present.
func addConnectionParam(connStr, key, value string) string {
	if strings.Contains(connStr, key+"=") {
		return connStr
	}
	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}
	return connStr + separator + key + "=" + value
}
