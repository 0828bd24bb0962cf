package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorMemory = (*Store)(nil)

// DefaultFileName is the database file created inside the data directory.
const DefaultFileName = "vectors.db"

const metaDimensions = "dimensions"

// Store is a SQLite-backed vector memory.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
	embedder   driven.EmbeddingGenerator
}

// NewStore opens (or creates) the database at path. If path is empty,
// defaults to ~/.sercha-rag/data/vectors.db. The embedder is used by Search
// and may be nil.
func NewStore(path string, dimensions int, embedder driven.EmbeddingGenerator) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}
	if embedder != nil && embedder.Dimensions() != dimensions {
		return nil, fmt.Errorf("%w: embedder produces %d, store expects %d",
			domain.ErrDimensionMismatch, embedder.Dimensions(), dimensions)
	}

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sercha-rag", "data", DefaultFileName)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:         db,
		path:       path,
		dimensions: dimensions,
		embedder:   embedder,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.checkDimensions(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Opened vector store %s (%d dimensions)", path, dimensions)
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the vector size fixed at construction.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs all pending migrations, each in its own transaction.
func (s *Store) migrate(fsys fs.FS) error {
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
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// checkDimensions records the dimensions on first open and rejects a
// different value afterwards.
func (s *Store) checkDimensions() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", metaDimensions).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)",
			metaDimensions, strconv.Itoa(s.dimensions)); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading dimensions: %w", err)
	}
	if stored != strconv.Itoa(s.dimensions) {
		return fmt.Errorf("%w: store %s holds %s-dimensional vectors, configured %d",
			domain.ErrDimensionMismatch, s.path, stored, s.dimensions)
	}
	return nil
}

// Upsert inserts or replaces one record.
func (s *Store) Upsert(ctx context.Context, record domain.VectorRecord) error {
	return s.UpsertBatch(ctx, []domain.VectorRecord{record})
}

// UpsertBatch writes all records in a single transaction.
func (s *Store) UpsertBatch(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := vecmath.CheckRecord(rec, s.dimensions); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_records (id, text, document_key, display_name, content_type, metadata_json, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			document_key = excluded.document_key,
			display_name = excluded.display_name,
			content_type = excluded.content_type,
			metadata_json = excluded.metadata_json,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		metadataJSON, err := encodeMetadata(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata of %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Text, rec.DocumentKey, rec.DisplayName,
			rec.ContentType, metadataJSON, float32SliceToBytes(rec.Embedding)); err != nil {
			return fmt.Errorf("saving record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteByDocument removes every record of the document key.
func (s *Store) DeleteByDocument(ctx context.Context, documentKey string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vector_records WHERE document_key = ?", documentKey); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentKey, err)
	}
	return nil
}

// DeleteIDs removes the given records in one transaction.
func (s *Store) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM vector_records WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("deleting record %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ChunkIDs lists the record IDs of a document in ascending order.
func (s *Store) ChunkIDs(ctx context.Context, documentKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM vector_records WHERE document_key = ? ORDER BY id", documentKey)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}
	return ids, nil
}

// Purge drops all records. The configured dimensions are kept.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vector_records"); err != nil {
		return fmt.Errorf("purging records: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vector_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// SearchByVector scans the candidate rows and ranks them by cosine similarity.
func (s *Store) SearchByVector(
	ctx context.Context, query domain.Embedding, topK int, filter domain.Filter,
) ([]domain.SearchHit, error) {
	if err := vecmath.CheckSearch(query, s.dimensions, topK); err != nil {
		return nil, err
	}

	where, args, rest := pushdown(filter)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, document_key, display_name, content_type, metadata_json, embedding
		FROM vector_records`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	top := vecmath.NewTopK(topK)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if !rest.Matches(rec) {
			continue
		}
		top.Offer(domain.SearchHit{
			ChunkID:  rec.ID,
			Document: rec.Document(),
			Text:     rec.Text,
			Score:    vecmath.Cosine(query.Values, rec.Embedding),
			Metadata: rec.Metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return top.Results(), nil
}

// Search embeds the query and calls SearchByVector.
func (s *Store) Search(
	ctx context.Context, query string, topK int, filter domain.Filter,
) ([]domain.SearchHit, error) {
	emb, err := vecmath.EmbedQuery(ctx, s.embedder, s.dimensions, query)
	if err != nil {
		return nil, err
	}
	return s.SearchByVector(ctx, emb, topK, filter)
}

// ==================== Helper Functions ====================

// pushdown turns the column filters into a WHERE clause and returns the
// keys left to match in Go after decoding.
func pushdown(filter domain.Filter) (string, []any, domain.Filter) {
	var conds []string
	var args []any
	var pushed []string
	if key, ok := filter.DocumentKey(); ok {
		conds = append(conds, "document_key = ?")
		args = append(args, key)
		pushed = append(pushed, domain.FilterDocumentKey)
	}
	if ct, ok := filter[domain.FilterContentType].(string); ok {
		conds = append(conds, "content_type = ?")
		args = append(args, ct)
		pushed = append(pushed, domain.FilterContentType)
	}
	if len(conds) == 0 {
		return "", nil, filter
	}
	return " WHERE " + strings.Join(conds, " AND "), args, filter.Without(pushed...)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row. Undecodable metadata is logged and dropped.
func scanRecord(row scanner) (domain.VectorRecord, error) {
	var rec domain.VectorRecord
	var metadataJSON sql.NullString
	var blob []byte
	if err := row.Scan(&rec.ID, &rec.Text, &rec.DocumentKey, &rec.DisplayName,
		&rec.ContentType, &metadataJSON, &blob); err != nil {
		return rec, fmt.Errorf("scanning record: %w", err)
	}
	rec.Embedding = bytesToFloat32Slice(blob)
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
			logger.Warn("Ignoring unreadable metadata of %s: %v", rec.ID, err)
			rec.Metadata = nil
		}
	}
	return rec, nil
}

func encodeMetadata(m domain.Metadata) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
