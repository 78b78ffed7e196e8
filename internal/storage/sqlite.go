package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"scholardigest/internal/article"
	"scholardigest/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const articlesTable = "articles"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// legacyColumns maps column names written by earlier versions of the tool to
// their canonical replacements.
var legacyColumns = map[string]string{
	"hash":              colContentHash,
	"email_id":          colSourceMessageID,
	"email_date":        colSourceTimestamp,
	"score":             colRelevance,
	"reason":            colRelevanceReason,
	"full_text_summary": colEnrichedText,
	"added_at":          colCreatedAt,
}

// SQLiteTable mirrors records into an indexed SQLite table keyed by
// content_hash.
type SQLiteTable struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at path, repairs legacy layouts,
// and applies pending migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteTable, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	table := &SQLiteTable{db: db, path: path, logger: logging.NewComponentLogger(logger, "storage.sqlite")}
	if err := table.repairColumns(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := table.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_content_hash ON articles (content_hash)"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure content_hash index: %w", err)
	}
	return table, nil
}

func (t *SQLiteTable) migrate() error {
	driver, err := migratesqlite.WithInstance(t.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close would close the shared *sql.DB; only the source is released.
	defer source.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database %s is at dirty migration version %d", t.path, version)
	}
	t.logger.Debug("sqlite schema ready", logging.Int("version", int(version)))
	return nil
}

// repairColumns adds canonical columns to an existing articles table that
// predates them and copies values over from legacy column names.
func (t *SQLiteTable) repairColumns(ctx context.Context) error {
	existing, err := t.tableColumns(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	for _, col := range columns {
		if existing[col] {
			continue
		}
		columnType := "TEXT"
		if col == colSourceTimestamp {
			columnType = "REAL"
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", articlesTable, col, columnType)
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
		t.logger.Info("sqlite column added", logging.String("column", col))
		for legacy, canonical := range legacyColumns {
			if canonical != col || !existing[legacy] {
				continue
			}
			copyStmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL", articlesTable, col, legacy, col)
			if _, err := t.db.ExecContext(ctx, copyStmt); err != nil {
				return fmt.Errorf("copy legacy column %s: %w", legacy, err)
			}
		}
	}
	return nil
}

func (t *SQLiteTable) tableColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := t.db.QueryContext(ctx, "PRAGMA table_info("+articlesTable+")")
	if err != nil {
		return nil, fmt.Errorf("inspect articles table: %w", err)
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		found[strings.ToLower(name)] = true
	}
	return found, rows.Err()
}

// Path returns the database file location.
func (t *SQLiteTable) Path() string {
	return t.path
}

// Append inserts records with INSERT OR IGNORE so an existing key is never
// duplicated or overwritten.
func (t *SQLiteTable) Append(ctx context.Context, records []article.Record) (int, error) {
	records = dedupeFirst(records)
	if len(records) == 0 {
		return 0, nil
	}
	inserted := 0
	err := t.withTx(ctx, func(tx *sql.Tx) error {
		inserted = 0
		for _, rec := range records {
			query, args, err := sq.Insert(articlesTable).
				Options("OR IGNORE").
				Columns(columns...).
				Values(sqliteValues(rec)...).
				ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("insert %s: %w", rec.ContentHash, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Load returns every stored record in insertion order.
func (t *SQLiteTable) Load(ctx context.Context) ([]article.Record, error) {
	query, args, err := sq.Select(columns...).
		From(articlesTable).
		Where(sq.NotEq{colContentHash: nil}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var records []article.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return records, nil
}

// Update applies partial updates inside one transaction.
func (t *SQLiteTable) Update(ctx context.Context, updates []article.Update) (UpdateResult, error) {
	var result UpdateResult
	if len(updates) == 0 {
		return result, nil
	}
	err := t.withTx(ctx, func(tx *sql.Tx) error {
		result = UpdateResult{}
		for _, update := range updates {
			if update.Fields.Empty() {
				result.Skipped++
				continue
			}
			builder := sq.Update(articlesTable).Where(sq.Eq{colContentHash: update.Key})
			if update.Fields.Relevance != nil {
				builder = builder.Set(colRelevance, string(*update.Fields.Relevance))
			}
			if update.Fields.RelevanceReason != nil {
				builder = builder.Set(colRelevanceReason, *update.Fields.RelevanceReason)
			}
			if update.Fields.EnrichedText != nil {
				builder = builder.Set(colEnrichedText, *update.Fields.EnrichedText)
			}
			query, args, err := builder.ToSql()
			if err != nil {
				return fmt.Errorf("build update: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("update %s: %w", update.Key, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("update %s: rows affected: %w", update.Key, err)
			}
			if n == 0 {
				result.Skipped++
				continue
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

// Count returns the number of stored records.
func (t *SQLiteTable) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(1)").From(articlesTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (t *SQLiteTable) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

func (t *SQLiteTable) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := t.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func sqliteValues(r article.Record) []any {
	return []any{
		r.ContentHash,
		r.Title,
		r.Link,
		r.Summary,
		r.SourceMessageID,
		nullableEpoch(r.SourceTimestamp),
		nullableTierValue(r.Relevance),
		nullableValue(r.RelevanceReason),
		nullableValue(r.EnrichedText),
		nullableValue(nullable(formatCreatedAt(r.CreatedAt))),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (article.Record, error) {
	var (
		hash, title, link, summary, messageID sql.NullString
		relevance, reason, enriched, created  sql.NullString
		sourceTS                              any
	)
	if err := row.Scan(&hash, &title, &link, &summary, &messageID, &sourceTS, &relevance, &reason, &enriched, &created); err != nil {
		return article.Record{}, fmt.Errorf("scan article: %w", err)
	}
	rec := article.Record{
		ContentHash:     hash.String,
		Title:           title.String,
		Link:            link.String,
		Summary:         summary.String,
		SourceMessageID: messageID.String,
		Relevance:       nullableTier(relevance.String),
		RelevanceReason: nullable(reason.String),
		EnrichedText:    nullable(enriched.String),
	}
	ts, err := epochFromColumn(sourceTS)
	if err != nil {
		return rec, fmt.Errorf("article %s: %s: %w", rec.ContentHash, colSourceTimestamp, err)
	}
	rec.SourceTimestamp = ts
	if raw := strings.TrimSpace(created.String); raw != "" {
		if parsed, err := parseTimestampText(raw); err == nil {
			rec.CreatedAt = parsed
		}
	}
	return rec, nil
}

func epochFromColumn(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case float64:
		return article.FromEpochSeconds(v), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case []byte:
		return epochFromText(string(v))
	case string:
		return epochFromText(v)
	default:
		return time.Time{}, fmt.Errorf("unsupported value type %T", value)
	}
}

func epochFromText(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return parseTimestampText(raw)
}

func nullableEpoch(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return article.EpochSeconds(t)
}

func nullableTierValue(t *article.Tier) any {
	if t == nil {
		return nil
	}
	return string(*t)
}

func nullableValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
