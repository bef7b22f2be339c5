package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/config"
	"github.com/xkilldash9x/snitchlint/internal/engine"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var scanColumns = []string{
	"id", "roots", "rules", "started_at", "finished_at",
	"files_discovered", "files_analyzed", "files_skipped", "files_failed", "findings",
}

var findingSelectColumns = []string{
	"rule_id", "cwe", "file", "start_line", "start_column", "end_line", "end_column",
	"sink", "argument_index", "origin", "source", "severity", "message", "snippet",
}

const testScanID = "0f4b0c1e-6a59-4f7e-9d1c-2b8f3c4d5e6f"

func sampleFinding() core.Finding {
	return core.Finding{
		RuleID:        "sql-injection",
		CWE:           89,
		File:          "/src/app.js",
		Start:         core.Position{Line: 3, Column: 1},
		End:           core.Position{Line: 3, Column: 30},
		Sink:          "query",
		ArgumentIndex: 0,
		Origin:        "id",
		Source:        "req.query",
		Severity:      core.SeverityWarning,
		Message:       `Potential SQL Injection: tainted data from "id" used in method "query" argument 1`,
		Snippet:       `db.query("SELECT " + id);`,
	}
}

func sampleResult() *engine.Result {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return &engine.Result{
		ScanID:     testScanID,
		Roots:      []string{"/src"},
		Rules:      []string{"sql-injection", "xss"},
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Stats:      engine.Stats{FilesDiscovered: 4, FilesAnalyzed: 3, FilesSkipped: 1, Findings: 1},
		Findings:   []core.Finding{sampleFinding()},
	}
}

// newMockStore returns a store backed by pgxmock with the initial ping satisfied.
func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

func expectScanInsert(mockPool pgxmock.PgxPoolIface, r *engine.Result) *pgxmock.ExpectedExec {
	st := r.Stats
	return mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScan)).
		WithArgs(r.ScanID, r.Roots, r.Rules, pgxmock.AnyArg(), pgxmock.AnyArg(),
			st.FilesDiscovered, st.FilesAnalyzed, st.FilesSkipped, st.FilesFailed, st.Findings)
}

// -- Test Cases --

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn is not configured")

	_, err = Open(context.Background(), config.StoreConfig{DSN: "://not a dsn", ConnectTimeout: time.Second}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store.dsn")
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	for _, stmt := range Schema {
		mockPool.ExpectExec(flexibleSQLMatcher(stmt)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())

	t.Run("stops at the first failing statement", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectExec(flexibleSQLMatcher(Schema[0])).WillReturnError(errors.New("permission denied"))

		err := s.EnsureSchema(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply schema")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPersistResult(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist scan and findings without rollback", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(observedZapCore))
		result := sampleResult()

		mockPool.ExpectBegin()
		expectScanInsert(mockPool, result).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"findings"}, findingColumns).WillReturnResult(1)
		mockPool.ExpectCommit()

		require.NoError(t, s.PersistResult(ctx, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Zero(t, observedLogs.Len(), "no errors should be logged")
	})

	t.Run("should skip the copy when there are no findings", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		result := sampleResult()
		result.Findings = nil
		result.Stats.Findings = 0

		mockPool.ExpectBegin()
		expectScanInsert(mockPool, result).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		require.NoError(t, s.PersistResult(ctx, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return error if begin fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		beginErr := errors.New("connection reset")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := s.PersistResult(ctx, sampleResult())
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback when the copy fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		result := sampleResult()
		copyErr := errors.New("copy failed")

		mockPool.ExpectBegin()
		expectScanInsert(mockPool, result).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"findings"}, findingColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.PersistResult(ctx, result)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback on a short copy", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		result := sampleResult()

		mockPool.ExpectBegin()
		expectScanInsert(mockPool, result).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"findings"}, findingColumns).WillReturnResult(0)
		mockPool.ExpectRollback()

		err := s.PersistResult(ctx, result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied findings count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback when the scan insert fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		result := sampleResult()

		mockPool.ExpectBegin()
		expectScanInsert(mockPool, result).WillReturnError(errors.New("duplicate key"))
		mockPool.ExpectRollback()

		err := s.PersistResult(ctx, result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert scan "+testScanID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func findingRow(f core.Finding) []any {
	return []any{
		f.RuleID, f.CWE, f.File, f.Start.Line, f.Start.Column, f.End.Line, f.End.Column,
		f.Sink, f.ArgumentIndex, f.Origin, f.Source, string(f.Severity), f.Message, f.Snippet,
	}
}

func TestFindingsByScanID(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	f := sampleFinding()
	rows := pgxmock.NewRows(findingSelectColumns).AddRow(findingRow(f)...)
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectFindings)).WithArgs(testScanID).WillReturnRows(rows)

	findings, err := s.FindingsByScanID(context.Background(), testScanID)
	require.NoError(t, err)
	assert.Equal(t, []core.Finding{f}, findings)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestFindingsByScanID_QueryError(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectFindings)).WithArgs(testScanID).WillReturnError(errors.New("boom"))

	_, err := s.FindingsByScanID(context.Background(), testScanID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query findings")
}

func scanRow(r *engine.Result) []any {
	st := r.Stats
	return []any{
		r.ScanID, r.Roots, r.Rules, r.StartedAt, r.FinishedAt,
		st.FilesDiscovered, st.FilesAnalyzed, st.FilesSkipped, st.FilesFailed, st.Findings,
	}
}

func TestLoadResult(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	want := sampleResult()

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectScan)).WithArgs(testScanID).
		WillReturnRows(pgxmock.NewRows(scanColumns).AddRow(scanRow(want)...))
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectFindings)).WithArgs(testScanID).
		WillReturnRows(pgxmock.NewRows(findingSelectColumns).AddRow(findingRow(want.Findings[0])...))

	got, err := s.LoadResult(context.Background(), testScanID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 2*time.Second, got.Duration())
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoadResult_NotFound(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectScan)).WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(scanColumns))

	_, err := s.LoadResult(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestRecentScans(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	newer := sampleResult()
	older := sampleResult()
	older.ScanID = "older"
	older.StartedAt = older.StartedAt.Add(-time.Hour)

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentScans)).WithArgs(10).
		WillReturnRows(pgxmock.NewRows(scanColumns).AddRow(scanRow(newer)...).AddRow(scanRow(older)...))

	scans, err := s.RecentScans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, testScanID, scans[0].ID)
	assert.Equal(t, "older", scans[1].ID)
	assert.Equal(t, newer.Stats, scans[0].Stats)
	assert.Equal(t, []string{"/src"}, scans[1].Roots)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
