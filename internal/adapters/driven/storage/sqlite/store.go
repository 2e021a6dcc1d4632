package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SegmentStore = (*Store)(nil)

// segmentColumns is the canonical column list for segment scans.
const segmentColumns = `id, parent_id, collection_id, text, token_count,
	page, slide, char_start, char_end, bbox, content_hash, embedding, created_at`

// readingOrder sorts segments for reproducible downstream assembly:
// page, then slide, then char-start, ties broken by insertion order.
const readingOrder = `ORDER BY COALESCE(page, 0), COALESCE(slide, 0), COALESCE(char_start, 0), rowid`

// Store is a SQLite-backed segment store. It is an explicitly constructed,
// explicitly owned handle: callers create it and pass it into the engine's
// constructor, with no shared process-global connection state.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.recall/data/segments.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "segments.db")

	// WAL keeps reads operating on the latest committed snapshot without
	// blocking writers.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// CreateSegment stores a new segment, or returns the existing ID when the
// same content already exists under the parent. The unique
// (parent_id, content_hash) constraint makes the check-and-insert a single
// atomic statement, so concurrent ingestion of overlapping content cannot
// create duplicates.
func (s *Store) CreateSegment(ctx context.Context, seg domain.NewSegment) (string, bool, error) {
	id := uuid.New().String()
	hash := domain.ContentHash(seg.Text)
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO segments
			(id, parent_id, collection_id, text, token_count,
			 page, slide, char_start, char_end, bbox,
			 content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(parent_id, content_hash) DO NOTHING
	`, id, seg.ParentID, seg.CollectionID, seg.Text, seg.TokenCount,
		nullInt(seg.Position.Page), nullInt(seg.Position.Slide),
		nullInt(seg.Position.CharStart), nullInt(seg.Position.CharEnd),
		seg.Position.BBox, hash, now)
	if err != nil {
		return "", false, wrapStorage("inserting segment", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, wrapStorage("inserting segment", err)
	}
	if n > 0 {
		return id, true, nil
	}

	// Dedup hit: some insert (ours or a concurrent one) already owns
	// (parent_id, content_hash); hand back that segment's ID.
	var existing string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM segments WHERE parent_id = ? AND content_hash = ?
	`, seg.ParentID, hash).Scan(&existing)
	if err != nil {
		return "", false, wrapStorage("resolving duplicate segment", err)
	}
	return existing, false, nil
}

// GetByIDs returns found segments in reading order. Missing IDs are
// silently omitted.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Segment, error) {
	if len(ids) == 0 {
		return []domain.Segment{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM segments WHERE id IN (%s) %s
	`, segmentColumns, placeholders, readingOrder), args...)
	if err != nil {
		return nil, wrapStorage("querying segments", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

// ListByParent returns one page of a parent's segments in reading order
// plus the parent's total segment count.
func (s *Store) ListByParent(ctx context.Context, parentID string, offset, limit int) ([]domain.Segment, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM segments WHERE parent_id = ?", parentID).Scan(&total)
	if err != nil {
		return nil, 0, wrapStorage("counting segments", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM segments WHERE parent_id = ? %s LIMIT ? OFFSET ?
	`, segmentColumns, readingOrder), parentID, limit, offset)
	if err != nil {
		return nil, 0, wrapStorage("querying segments", err)
	}
	defer rows.Close()

	segs, err := scanSegments(rows)
	if err != nil {
		return nil, 0, err
	}
	return segs, total, nil
}

// DeleteByParent removes all segments of a parent document and returns
// the removed IDs so index entries can be orphaned.
func (s *Store) DeleteByParent(ctx context.Context, parentID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStorage("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM segments WHERE parent_id = ?", parentID)
	if err != nil {
		return nil, wrapStorage("querying segment ids", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapStorage("scanning segment id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapStorage("iterating segment ids", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM segments WHERE parent_id = ?", parentID); err != nil {
		return nil, wrapStorage("deleting segments", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStorage("committing transaction", err)
	}
	return ids, nil
}

// ApplyEmbeddings attaches vectors to segments in a single transaction.
// The transactional boundary covers only these writes, not the whole
// store; entries targeting unknown segments are silent no-ops.
func (s *Store) ApplyEmbeddings(ctx context.Context, updates []domain.EmbeddingUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorage("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE segments SET embedding = ? WHERE id = ?")
	if err != nil {
		return wrapStorage("preparing statement", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, domain.EncodeVector(u.Embedding), u.SegmentID); err != nil {
			return wrapStorage("updating embedding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStorage("committing transaction", err)
	}
	return nil
}

// ListEmbeddings returns a snapshot of (id, embedding) pairs for all
// segments with a non-nil embedding, narrowed by the scope filters.
func (s *Store) ListEmbeddings(ctx context.Context, filters domain.SearchFilters) ([]driven.EmbeddedSegment, error) {
	query := "SELECT id, embedding FROM segments WHERE embedding IS NOT NULL"
	var args []any

	if len(filters.ParentIDs) > 0 {
		query += " AND parent_id IN (" + strings.Repeat("?,", len(filters.ParentIDs)-1) + "?)"
		for _, id := range filters.ParentIDs {
			args = append(args, id)
		}
	}
	if filters.CollectionID != "" {
		query += " AND collection_id = ?"
		args = append(args, filters.CollectionID)
	}
	if len(filters.ExcludeSegmentIDs) > 0 {
		query += " AND id NOT IN (" + strings.Repeat("?,", len(filters.ExcludeSegmentIDs)-1) + "?)"
		for _, id := range filters.ExcludeSegmentIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage("querying embeddings", err)
	}
	defer rows.Close()

	var items []driven.EmbeddedSegment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, wrapStorage("scanning embedding", err)
		}
		items = append(items, driven.EmbeddedSegment{
			ID:        id,
			Embedding: domain.DecodeVector(blob),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage("iterating embeddings", err)
	}
	return items, nil
}

// Stats reports store health.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) - COUNT(embedding),
			AVG(LENGTH(text))
		FROM segments
	`).Scan(&stats.TotalSegments, &stats.SegmentsMissingEmbedding, &avg)
	if err != nil {
		return domain.StoreStats{}, wrapStorage("reading stats", err)
	}
	if avg.Valid {
		stats.AverageTextLength = int(avg.Float64 + 0.5)
	}
	return stats, nil
}

// CleanupInvalidVectors removes segments whose stored embedding blob does
// not decode to exactly dim components. A defensive repair for corrupted
// writes; NULL embeddings are legal and untouched.
func (s *Store) CleanupInvalidVectors(ctx context.Context, dim int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM segments
		WHERE embedding IS NOT NULL AND LENGTH(embedding) != ?
	`, domain.EncodedLen(dim))
	if err != nil {
		return 0, wrapStorage("deleting invalid vectors", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStorage("deleting invalid vectors", err)
	}
	return int(n), nil
}

// ==================== Helper Functions ====================

// wrapStorage tags driver failures with domain.ErrStorage while keeping
// the original error in the chain for logs.
func wrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorage, err))
}

// nullInt converts an optional int to a driver-friendly value.
func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// scanSegments scans segment rows in reading order.
func scanSegments(rows *sql.Rows) ([]domain.Segment, error) {
	var segs []domain.Segment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var seg domain.Segment
		var page, slide, charStart, charEnd sql.NullInt64
		var blob []byte
		var createdAt sql.NullTime

		if err := rows.Scan(&seg.ID, &seg.ParentID, &seg.CollectionID, &seg.Text,
			&seg.TokenCount, &page, &slide, &charStart, &charEnd,
			&seg.Position.BBox, &seg.ContentHash, &blob, &createdAt); err != nil {
			return nil, wrapStorage("scanning segment", err)
		}

		seg.Position.Page = intPtr(page)
		seg.Position.Slide = intPtr(slide)
		seg.Position.CharStart = intPtr(charStart)
		seg.Position.CharEnd = intPtr(charEnd)
		seg.Embedding = domain.DecodeVector(blob)
		if createdAt.Valid {
			seg.CreatedAt = createdAt.Time
		}

		segs = append(segs, seg)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStorage("iterating segments", err)
	}
	if segs == nil {
		segs = []domain.Segment{}
	}
	return segs, nil
}

// intPtr converts a nullable column to an optional int.
func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
