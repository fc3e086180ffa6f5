// Package archive mirrors flushed batches into a SQL database so that runs
// can be inspected or deduplicated after the fact.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"mevzuat/internal/config"
	"mevzuat/internal/models"
)

// ErrUnsupportedDSN is returned for DSNs with an unknown scheme.
var ErrUnsupportedDSN = errors.New("unsupported archive dsn")

// Archive upserts records keyed by their url params.
type Archive struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// New wraps an open database. driver is "pgx" or "sqlite".
func New(db *sql.DB, driver string) *Archive {
	return &Archive{db: db, driver: driver, now: time.Now}
}

// Open connects to dsn, pings it and makes sure the schema exists.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	driver := config.ArchiveDriver(dsn)
	if driver == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, redact(dsn))
	}

	source := dsn
	if driver == "sqlite" {
		source = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	a := New(db, driver)
	if err := a.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return a, nil
}

// EnsureSchema creates the records table when missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS records (
	url_params TEXT PRIMARY KEY,
	mevzuat_no TEXT NOT NULL,
	title TEXT NOT NULL,
	resmi_gazete_tarihi TEXT NOT NULL,
	resmi_gazete_sayisi TEXT NOT NULL,
	mevzuat_turu TEXT NOT NULL,
	text TEXT NOT NULL,
	url TEXT NOT NULL,
	archived_at TIMESTAMP NOT NULL
)`

	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	return nil
}

// SaveBatch upserts every record of the batch in one transaction and
// returns how many rows were written.
func (a *Archive) SaveBatch(ctx context.Context, batch models.Batch) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	query := a.upsertQuery()
	archivedAt := a.now().UTC()
	written := 0

	for _, rec := range batch.Records {
		_, err := tx.ExecContext(ctx, query,
			rec.URLParams, rec.DocumentNo, rec.Title, rec.GazetteDate, rec.GazetteNo,
			rec.DocumentType, rec.Text, rec.URL, archivedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert record %s: %w", rec.URLParams, err)
		}

		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive tx: %w", err)
	}

	return written, nil
}

// Count returns the number of archived records.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return n, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) upsertQuery() string {
	placeholders := make([]string, 9)
	for i := range placeholders {
		if a.driver == "sqlite" {
			placeholders[i] = "?"
		} else {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
	}

	return `
INSERT INTO records (
	url_params, mevzuat_no, title, resmi_gazete_tarihi, resmi_gazete_sayisi, mevzuat_turu, text, url, archived_at
) VALUES (` + strings.Join(placeholders, ",") + `)
ON CONFLICT (url_params) DO UPDATE SET
	mevzuat_no = excluded.mevzuat_no,
	title = excluded.title,
	resmi_gazete_tarihi = excluded.resmi_gazete_tarihi,
	resmi_gazete_sayisi = excluded.resmi_gazete_sayisi,
	mevzuat_turu = excluded.mevzuat_turu,
	text = excluded.text,
	url = excluded.url,
	archived_at = excluded.archived_at
`
}

// redact hides credentials in a DSN for error messages.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "<invalid>"
	}

	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		rest = "***" + rest[at:]
	}

	return scheme + "://" + rest
}
