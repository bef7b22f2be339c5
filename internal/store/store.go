package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/config"
	"github.com/xkilldash9x/snitchlint/internal/engine"
)

// ErrScanNotFound is returned when no scan with the requested ID is stored.
var ErrScanNotFound = errors.New("scan not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the tables the store writes to. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS scans (
        id               TEXT PRIMARY KEY,
        roots            TEXT[] NOT NULL,
        rules            TEXT[] NOT NULL,
        started_at       TIMESTAMPTZ NOT NULL,
        finished_at      TIMESTAMPTZ NOT NULL,
        files_discovered INTEGER NOT NULL,
        files_analyzed   INTEGER NOT NULL,
        files_skipped    INTEGER NOT NULL,
        files_failed     INTEGER NOT NULL,
        findings         INTEGER NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS findings (
        scan_id        TEXT NOT NULL REFERENCES scans (id) ON DELETE CASCADE,
        seq            INTEGER NOT NULL,
        rule_id        TEXT NOT NULL,
        cwe            INTEGER NOT NULL,
        file           TEXT NOT NULL,
        start_line     INTEGER NOT NULL,
        start_column   INTEGER NOT NULL,
        end_line       INTEGER NOT NULL,
        end_column     INTEGER NOT NULL,
        sink           TEXT NOT NULL,
        argument_index INTEGER NOT NULL,
        origin         TEXT NOT NULL,
        source         TEXT NOT NULL,
        severity       TEXT NOT NULL,
        message        TEXT NOT NULL,
        snippet        TEXT NOT NULL,
        PRIMARY KEY (scan_id, seq)
    )`,
	`CREATE INDEX IF NOT EXISTS findings_rule_id_idx ON findings (rule_id)`,
}

// findingColumns is the column order used by CopyFrom and by the select.
var findingColumns = []string{
	"scan_id", "seq", "rule_id", "cwe", "file",
	"start_line", "start_column", "end_line", "end_column",
	"sink", "argument_index", "origin", "source", "severity", "message", "snippet",
}

const (
	sqlInsertScan = `
        INSERT INTO scans (id, roots, rules, started_at, finished_at,
            files_discovered, files_analyzed, files_skipped, files_failed, findings)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `
	sqlSelectScan = `
        SELECT id, roots, rules, started_at, finished_at,
            files_discovered, files_analyzed, files_skipped, files_failed, findings
        FROM scans
        WHERE id = $1;
    `
	sqlRecentScans = `
        SELECT id, roots, rules, started_at, finished_at,
            files_discovered, files_analyzed, files_skipped, files_failed, findings
        FROM scans
        ORDER BY started_at DESC
        LIMIT $1;
    `
	sqlSelectFindings = `
        SELECT rule_id, cwe, file, start_line, start_column, end_line, end_column,
            sink, argument_index, origin, source, severity, message, snippet
        FROM findings
        WHERE scan_id = $1
        ORDER BY seq ASC;
    `
)

// ScanSummary is one row of the scan history.
type ScanSummary struct {
	ID         string
	Roots      []string
	Rules      []string
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      engine.Stats
}

// Store persists scan results to PostgreSQL.
type Store struct {
	pool  DBPool
	log   *zap.Logger
	close func()
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Open connects to the database named by cfg.DSN and, when cfg.AutoMigrate
// is set, creates the schema. Close releases the pool.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("store.dsn is not configured")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid store.dsn: %w", err)
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(connectCtx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.close = pool.Close

	if cfg.AutoMigrate {
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the connection pool opened by Open.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// EnsureSchema creates the tables used by the store if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.log.Debug("Schema is up to date")
	return nil
}

// PersistResult stores the scan and its findings in one transaction.
func (s *Store) PersistResult(ctx context.Context, result *engine.Result) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	st := result.Stats
	_, err = tx.Exec(ctx, sqlInsertScan,
		result.ScanID, nonNil(result.Roots), nonNil(result.Rules),
		result.StartedAt.UTC(), result.FinishedAt.UTC(),
		st.FilesDiscovered, st.FilesAnalyzed, st.FilesSkipped, st.FilesFailed, st.Findings,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan %s: %w", result.ScanID, err)
	}

	if len(result.Findings) > 0 {
		if err = s.persistFindings(ctx, tx, result.ScanID, result.Findings); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Scan persisted", zap.String("scan_id", result.ScanID), zap.Int("findings", len(result.Findings)))
	return nil
}

func (s *Store) persistFindings(ctx context.Context, tx pgx.Tx, scanID string, findings []core.Finding) error {
	rows := make([][]any, len(findings))
	for i, f := range findings {
		rows[i] = []any{
			scanID, i, f.RuleID, f.CWE, f.File,
			f.Start.Line, f.Start.Column, f.End.Line, f.End.Column,
			f.Sink, f.ArgumentIndex, f.Origin, f.Source, string(f.Severity), f.Message, f.Snippet,
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"findings"}, findingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy findings: %w", err)
	}
	if int(copyCount) != len(findings) {
		return fmt.Errorf("mismatch in copied findings count: expected %d, got %d", len(findings), copyCount)
	}
	return nil
}

// FindingsByScanID returns the findings of a scan in their original order.
func (s *Store) FindingsByScanID(ctx context.Context, scanID string) ([]core.Finding, error) {
	rows, err := s.pool.Query(ctx, sqlSelectFindings, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	findings := []core.Finding{}
	for rows.Next() {
		var (
			f        core.Finding
			severity string
		)
		err := rows.Scan(
			&f.RuleID, &f.CWE, &f.File,
			&f.Start.Line, &f.Start.Column, &f.End.Line, &f.End.Column,
			&f.Sink, &f.ArgumentIndex, &f.Origin, &f.Source,
			&severity, &f.Message, &f.Snippet,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		f.Severity = core.Severity(severity)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return findings, nil
}

// LoadResult rebuilds a stored scan. Per-file outcomes are not stored, so the
// result carries stats and findings only.
func (s *Store) LoadResult(ctx context.Context, scanID string) (*engine.Result, error) {
	summary, err := scanSummary(s.pool.QueryRow(ctx, sqlSelectScan, scanID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	findings, err := s.FindingsByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	return &engine.Result{
		ScanID:     summary.ID,
		Roots:      summary.Roots,
		Rules:      summary.Rules,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Stats:      summary.Stats,
		Findings:   findings,
	}, nil
}

// RecentScans returns up to limit scans, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]ScanSummary, error) {
	rows, err := s.pool.Query(ctx, sqlRecentScans, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []ScanSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scan row: %w", err)
		}
		scans = append(scans, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return scans, nil
}

// scanSummary reads one scans row. pgx.Row and pgx.Rows both satisfy row.
func scanSummary(row pgx.Row) (ScanSummary, error) {
	var s ScanSummary
	err := row.Scan(
		&s.ID, &s.Roots, &s.Rules, &s.StartedAt, &s.FinishedAt,
		&s.Stats.FilesDiscovered, &s.Stats.FilesAnalyzed, &s.Stats.FilesSkipped, &s.Stats.FilesFailed, &s.Stats.Findings,
	)
	return s, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
