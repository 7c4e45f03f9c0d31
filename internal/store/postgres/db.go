// Package postgres is the policy ledger on PostgreSQL. Every ledger
// operation runs in one database transaction and policy holders are
// serialized with row locks.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
)

const (
	maxRetries     = 5
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

//go:embed schema.sql
var schemaSQL string

// Open connects with exponential backoff, the way the service starts next
// to a database container that may still be booting.
func Open(cfg *config.Config) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	backoff := initialBackoff
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.DBConnectTimeout)*time.Second)
		db, err = sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
		cancel()
		if err == nil {
			break
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", maxRetries, err)
		}
		slog.Warn("postgres connect failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"err", err)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// EnsureSchema creates missing tables and indexes. Statements are idempotent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || isComment(stmt) {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

func isComment(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// Postgres error codes the ledger maps to domain errors.
const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// mapWriteErr turns a unique violation into exists and wraps everything else.
func mapWriteErr(op string, err error, exists error) error {
	if pqCode(err) == codeUniqueViolation {
		return exists
	}
	return fmt.Errorf("%s: %w", op, err)
}

// mapLockErr reports lock_timeout and NOWAIT failures as core.ErrLocked.
func mapLockErr(op, id string, err error) error {
	if pqCode(err) == codeLockNotAvailable {
		return fmt.Errorf("%w: policy holder %s", core.ErrLocked, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}
