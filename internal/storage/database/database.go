// Package database provides the PostgreSQL connection pool and the
// persistence operations for asset submissions and reviewer accounts.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetsentry/assetsentry/internal/intake"
)

// ErrUserNotFound is returned when no account matches the requested email.
var ErrUserNotFound = errors.New("user not found")

// Config holds the configuration for connecting to the PostgreSQL database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// User is a stored reviewer account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	FullName     string
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Manager manages the PostgreSQL database connection pool.
type Manager struct {
	dbpool dbPool
}

type options struct {
	newPool func(ctx context.Context, dsn string) (dbPool, error)
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New creates a database manager with a PostgreSQL connection pool using the provided configuration.
// Note: The connection is validated with a ping, but it is not maintained.
func New(ctx context.Context, cfg Config, args ...Options) (*Manager, error) {
	opts := options{
		newPool: func(ctx context.Context, dsn string) (dbPool, error) {
			return pgxpool.New(ctx, dsn)
		},
	}

	for _, opt := range args {
		opt(&opts)
	}

	dbpool, err := opts.newPool(ctx, cfg.URI("postgres"))
	if err != nil {
		return nil, fmt.Errorf("unable to create database connection pool: %w", err)
	}

	slog.Debug("Testing database connection", "host", cfg.Host, "port", cfg.Port)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %v", err)
	}

	slog.Info("Successfully pinged PostgreSQL database", "host", cfg.Host, "port", cfg.Port)
	return &Manager{dbpool: dbpool}, nil
}

// InsertSubmission persists one asset submission record.
//
// The insert is a single statement: the record is either fully visible to
// ListSubmissions afterwards or not present at all.
func (db Manager) InsertSubmission(ctx context.Context, rec *intake.Record) error {
	if db.dbpool == nil {
		return fmt.Errorf("database not initialized")
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode submission payload: %v", err)
	}
	checks, err := json.Marshal(rec.SecurityChecks)
	if err != nil {
		return fmt.Errorf("failed to encode security checks: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = db.dbpool.Exec(ctx,
		`INSERT INTO asset_submissions (
			accept_type,
			asset_type,
			manufacturer,
			mac_address,
			ip_address,
			location,
			custodian,
			os,
			antivirus,
			windows_license_status,
			data,
			security_checks,
			submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.AcceptType,           // accept_type
		rec.AssetType,            // asset_type
		rec.Manufacturer,         // manufacturer
		rec.MACAddress,           // mac_address
		rec.IPAddress,            // ip_address
		rec.Location,             // location
		rec.Custodian,            // custodian
		rec.OS,                   // os
		rec.Antivirus,            // antivirus
		rec.WindowsLicenseStatus, // windows_license_status
		data,                     // data
		checks,                   // security_checks
		rec.SubmittedAt,          // submitted_at
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("submission insert canceled: %v", err)
		}
		return fmt.Errorf("failed to insert submission: %v", err)
	}
	return nil
}

// ListSubmissions returns all stored submissions, newest first.
func (db Manager) ListSubmissions(ctx context.Context) ([]intake.Record, error) {
	if db.dbpool == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := db.dbpool.Query(ctx,
		`SELECT
			id,
			accept_type,
			asset_type,
			manufacturer,
			mac_address,
			ip_address,
			location,
			custodian,
			os,
			antivirus,
			windows_license_status,
			data,
			security_checks,
			submitted_at
		FROM asset_submissions
		ORDER BY submitted_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %v", err)
	}
	defer rows.Close()

	var records []intake.Record
	for rows.Next() {
		var (
			rec    intake.Record
			data   []byte
			checks []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.AcceptType,
			&rec.AssetType,
			&rec.Manufacturer,
			&rec.MACAddress,
			&rec.IPAddress,
			&rec.Location,
			&rec.Custodian,
			&rec.OS,
			&rec.Antivirus,
			&rec.WindowsLicenseStatus,
			&data,
			&checks,
			&rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %v", err)
		}

		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to decode submission payload: %v", err)
		}
		if err := json.Unmarshal(checks, &rec.SecurityChecks); err != nil {
			return nil, fmt.Errorf("failed to decode security checks: %v", err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read submission rows: %v", err)
	}

	return records, nil
}

// GetUserByEmail looks up a reviewer account by exact email match.
//
// Returns ErrUserNotFound when no account matches; any other error is a
// lookup failure.
func (db Manager) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if db.dbpool == nil {
		return User{}, fmt.Errorf("database not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var u User
	err := db.dbpool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, COALESCE(full_name, '')
		FROM users
		WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to look up user: %v", err)
	}
	return u, nil
}

// Close closes the database connection.
//
// If the connection is already closed, it does nothing.
// If the connection does not close within 10 seconds, it returns an error.
func (db *Manager) Close() error {
	if db.dbpool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		db.dbpool.Close()
	}()

	select {
	case <-done:
		db.dbpool = nil
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout while closing database, connection may still be open")
	}
}

// URI is a helper method that returns a connection URI for PostgreSQL.
// It does not check the validity of the configuration values.
//
// Security warning: the returned string may include credentials.
func (c Config) URI(scheme string) string {
	host := c.Host
	if c.Port != 0 {
		host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}

	user := url.User(c.User)
	if c.Password != "" {
		user = url.UserPassword(c.User, c.Password)
	}

	u := &url.URL{
		Scheme: scheme,
		User:   user,
		Host:   host,
		Path:   c.DBName,
	}

	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
