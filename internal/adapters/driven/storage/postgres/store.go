// Package postgres provides a driven.VectorMemory on PostgreSQL with the
// pgvector extension. Ranking, filtering and the topK limit all run in the
// database using the cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorMemory = (*Store)(nil)

// DefaultTable is the records table used when none is configured.
const DefaultTable = "sercha_vector_records"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,50}$`)

// Config holds the connection settings.
type Config struct {
	// DSN is a lib/pq connection string (required).
	DSN string

	// Table names the records table; a "<table>_meta" table is created next to it.
	Table string

	// Dimensions is the vector size of the embedding column.
	Dimensions int
}

// Store is a pgvector-backed vector memory.
type Store struct {
	db         *sql.DB
	table      string
	dimensions int
	embedder   driven.EmbeddingGenerator
}

// NewStore connects, creates the schema if needed and checks the stored
// dimensions. The embedder is used by Search and may be nil.
func NewStore(ctx context.Context, cfg Config, embedder driven.EmbeddingGenerator) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, cfg.Dimensions)
	}
	if embedder != nil && embedder.Dimensions() != cfg.Dimensions {
		return nil, fmt.Errorf("%w: embedder produces %d, store expects %d",
			domain.ErrDimensionMismatch, embedder.Dimensions(), cfg.Dimensions)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidInput, cfg.Table)
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: postgres: %v", domain.ErrVectorMemoryUnavailable, err)
	}

	s := &Store{db: db, table: cfg.Table, dimensions: cfg.Dimensions, embedder: embedder}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Connected to postgres vector table %s (%d dimensions)", s.table, s.dimensions)
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			document_key TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			metadata_json JSONB,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table, s.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_key_idx ON %s (document_key)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	var stored string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s_meta WHERE key = 'dimensions'`, s.table)).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s_meta (key, value) VALUES ('dimensions', $1)`, s.table),
			strconv.Itoa(s.dimensions))
		if err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading dimensions: %w", err)
	}
	if stored != strconv.Itoa(s.dimensions) {
		return fmt.Errorf("%w: table %s holds %s-dimensional vectors, configured %d",
			domain.ErrDimensionMismatch, s.table, stored, s.dimensions)
	}
	return nil
}

// Dimensions returns the vector size fixed at construction.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
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

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, text, document_key, display_name, content_type, metadata_json, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			document_key = EXCLUDED.document_key,
			display_name = EXCLUDED.display_name,
			content_type = EXCLUDED.content_type,
			metadata_json = EXCLUDED.metadata_json,
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`, s.table))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var metadataJSON sql.NullString
		if len(rec.Metadata) > 0 {
			data, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling metadata of %s: %w", rec.ID, err)
			}
			metadataJSON = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Text, rec.DocumentKey, rec.DisplayName,
			rec.ContentType, metadataJSON, pgvector.NewVector(rec.Embedding)); err != nil {
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
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_key = $1`, s.table), documentKey)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", documentKey, err)
	}
	return nil
}

// DeleteIDs removes the given records in one statement.
func (s *Store) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// ChunkIDs lists the record IDs of a document in ascending order.
func (s *Store) ChunkIDs(ctx context.Context, documentKey string) ([]string, error) {
	var ids pq.StringArray
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(array_agg(id ORDER BY id), '{}') FROM %s WHERE document_key = $1`, s.table),
		documentKey).Scan(&ids)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return []string(ids), nil
}

// Purge drops all records. The configured dimensions are kept.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s`, s.table)); err != nil {
		return fmt.Errorf("purging records: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// SearchByVector ranks by cosine distance in the database. Score is
// 1 - distance so that higher means more similar.
func (s *Store) SearchByVector(
	ctx context.Context, query domain.Embedding, topK int, filter domain.Filter,
) ([]domain.SearchHit, error) {
	if err := vecmath.CheckSearch(query, s.dimensions, topK); err != nil {
		return nil, err
	}

	args := []any{pgvector.NewVector(query.Values)}
	where := whereClause(filter, &args)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, text, document_key, display_name, content_type, metadata_json,
			1 - (embedding <=> $1) AS score
		FROM %s%s
		ORDER BY embedding <=> $1, id
		LIMIT $%d`, s.table, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var hits []domain.SearchHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.VectorRecord
		var metadataJSON []byte
		var score float64
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.DocumentKey, &rec.DisplayName,
			&rec.ContentType, &metadataJSON, &score); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
				logger.Warn("Ignoring unreadable metadata of %s: %v", rec.ID, err)
			}
		}
		hits = append(hits, domain.SearchHit{
			ChunkID:  rec.ID,
			Document: rec.Document(),
			Text:     rec.Text,
			Score:    score,
			Metadata: rec.Metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return hits, nil
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

// whereClause translates the filter to SQL, appending bind values to args.
// Metadata values are compared in their text form, matching Filter.Matches.
func whereClause(filter domain.Filter, args *[]any) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	for _, k := range keys {
		value := fmt.Sprint(filter[k])
		switch k {
		case domain.FilterDocumentKey:
			*args = append(*args, value)
			conds = append(conds, fmt.Sprintf("document_key = $%d", len(*args)))
		case domain.FilterContentType:
			*args = append(*args, value)
			conds = append(conds, fmt.Sprintf("content_type = $%d", len(*args)))
		default:
			*args = append(*args, k, value)
			conds = append(conds, fmt.Sprintf("metadata_json ->> $%d = $%d", len(*args)-1, len(*args)))
		}
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

