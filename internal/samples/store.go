package samples

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout keeps created_at lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound reports an unknown sample id.
var ErrNotFound = errors.New("sample not found")

// Sample is one persisted corrected raster.
type Sample struct {
	ID           string
	SourcePath   string
	SourceSHA256 string
	Path         string
	SHA256       string
	Size         int64
	DataType     string
	NoData       string
	IssueKinds   []string
	CreatedAt    time.Time
}

// ShortID is the eight-character prefix used in sample file names.
func (s Sample) ShortID() string {
	if len(s.ID) < 8 {
		return s.ID
	}
	return s.ID[:8]
}

// NewID returns a fresh sample identifier.
func NewID() string {
	return uuid.NewString()
}

// Store manages the sample registry backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the registry database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts sample. A missing ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, sample *Sample) error {
	if sample == nil {
		return errors.New("sample is nil")
	}
	if strings.TrimSpace(sample.Path) == "" || strings.TrimSpace(sample.SourcePath) == "" {
		return errors.New("sample requires source and sample paths")
	}
	if sample.ID == "" {
		sample.ID = NewID()
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now().UTC()
	}
	kinds, err := json.Marshal(nonNil(sample.IssueKinds))
	if err != nil {
		return fmt.Errorf("marshal issue kinds: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO samples (
            id, source_path, source_sha256, sample_path, sample_sha256,
            sample_size, data_type, nodata, issue_kinds, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.ID,
		sample.SourcePath,
		sample.SourceSHA256,
		sample.Path,
		sample.SHA256,
		sample.Size,
		sample.DataType,
		nullableString(sample.NoData),
		string(kinds),
		sample.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

const sampleColumns = "id, source_path, source_sha256, sample_path, sample_sha256, sample_size, data_type, nodata, issue_kinds, created_at"

// Get fetches a sample by id or fails with ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Sample, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sampleColumns+` FROM samples WHERE id = ?`, id)
	sample, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get sample: %w", err)
	}
	return sample, nil
}

// List returns every sample, newest first.
func (s *Store) List(ctx context.Context) ([]*Sample, error) {
	return s.query(ctx, `SELECT `+sampleColumns+` FROM samples ORDER BY created_at DESC, id`)
}

// ForSource returns the samples derived from sourcePath, newest first.
func (s *Store) ForSource(ctx context.Context, sourcePath string) ([]*Sample, error) {
	return s.query(ctx, `SELECT `+sampleColumns+` FROM samples WHERE source_path = ? ORDER BY created_at DESC, id`, sourcePath)
}

// Remove deletes the registry row for id. The sample file is left alone.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sample: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Sample, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var out []*Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

func scanSample(scanner interface{ Scan(dest ...any) error }) (*Sample, error) {
	var (
		sample     Sample
		nodata     sql.NullString
		kinds      string
		createdRaw string
	)
	if err := scanner.Scan(
		&sample.ID,
		&sample.SourcePath,
		&sample.SourceSHA256,
		&sample.Path,
		&sample.SHA256,
		&sample.Size,
		&sample.DataType,
		&nodata,
		&kinds,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	sample.NoData = nodata.String
	if err := json.Unmarshal([]byte(kinds), &sample.IssueKinds); err != nil {
		return nil, fmt.Errorf("decode issue kinds: %w", err)
	}
	created, err := time.Parse(timeLayout, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	sample.CreatedAt = created
	return &sample, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
