// Package vectorstore stores embedded text chunks in a pgvector table and
// searches them by cosine distance, optionally narrowed by a JSON metadata
// filter.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// Document is one stored chunk.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// SimilaritySearchResult is a document with its cosine similarity to the query.
type SimilaritySearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Querier is the part of pgxpool.Pool the store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PGVectorStore reads and writes one table created by
// database.CreateEmbeddingsTable.
type PGVectorStore struct {
	db    Querier
	table string
}

var tableNameExpr = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// isValidTableName allows 1-63 characters: a lowercase letter or underscore
// followed by letters, digits and underscores.
func isValidTableName(name string) bool {
	return tableNameExpr.MatchString(name)
}

func NewPGVectorStore(db Querier, tableName string) (*PGVectorStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name %q", tableName)
	}
	return &PGVectorStore{db: db, table: pgx.Identifier{tableName}.Sanitize()}, nil
}

// AddDocuments inserts all docs in one batch.
func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	insert := "INSERT INTO " + vs.table + " (content, metadata, embedding) VALUES ($1, $2, $3)"

	batch := &pgx.Batch{}
	for _, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		batch.Queue(insert, doc.Content, meta, pgvector.NewVector(doc.Embedding))
	}

	br := vs.db.SendBatch(ctx, batch)
	for i := range docs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert document %d: %w", i, err)
		}
	}
	return br.Close()
}

// SimilaritySearch returns up to topK documents matching filter, closest
// first. A nil filter matches everything.
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]any) ([]SimilaritySearchResult, error) {
	fc := filterCompiler{args: []any{pgvector.NewVector(queryEmbedding)}}
	where, err := fc.compile(filter)
	if err != nil {
		return nil, err
	}
	fc.args = append(fc.args, topK)

	sql := fmt.Sprintf(
		"SELECT id, content, metadata, 1 - (embedding <=> $1) FROM %s WHERE %s ORDER BY embedding <=> $1 LIMIT $%d",
		vs.table, where, len(fc.args))

	var out []SimilaritySearchResult
	err = vs.query(ctx, sql, fc.args, func(doc Document, score float64) {
		out = append(out, SimilaritySearchResult{Document: doc, Score: score})
	})
	return out, err
}

// FindByMetadata returns every document matching filter in insertion order.
func (vs *PGVectorStore) FindByMetadata(ctx context.Context, filter map[string]any) ([]Document, error) {
	var fc filterCompiler
	where, err := fc.compile(filter)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT id, content, metadata, 0::float8 FROM %s WHERE %s ORDER BY created_at, id", vs.table, where)

	var out []Document
	err = vs.query(ctx, sql, fc.args, func(doc Document, _ float64) {
		out = append(out, doc)
	})
	return out, err
}

func (vs *PGVectorStore) query(ctx context.Context, sql string, args []any, emit func(Document, float64)) error {
	rows, err := vs.db.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", vs.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc   Document
			meta  []byte
			score float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &score); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return fmt.Errorf("decode metadata of %s: %w", doc.ID, err)
			}
		}
		emit(doc, score)
	}
	return rows.Err()
}

// filterCompiler turns a JSON filter into a WHERE clause over the metadata
// column. Plain keys become containment checks (metadata @> {"k": v}) joined
// by AND; "$and" and "$or" take lists of sub-filters and "$not" takes one.
// Placeholders continue after any args already present.
type filterCompiler struct {
	args []any
}

func (fc *filterCompiler) compile(filter map[string]any) (string, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	for _, key := range keys {
		cond, err := fc.term(key, filter[key])
		if err != nil {
			return "", err
		}
		if cond != "" {
			conds = append(conds, cond)
		}
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), nil
}

func (fc *filterCompiler) term(key string, value any) (string, error) {
	switch key {
	case "$and", "$or":
		list, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("filter: %s takes a list of objects", key)
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			sub, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("filter: %s items must be objects", key)
			}
			clause, err := fc.compile(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+clause+")")
		}
		if len(parts) == 0 {
			return "", nil
		}
		op := " AND "
		if key == "$or" {
			op = " OR "
		}
		return "(" + strings.Join(parts, op) + ")", nil

	case "$not":
		sub, ok := value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("filter: $not takes an object")
		}
		clause, err := fc.compile(sub)
		if err != nil {
			return "", err
		}
		return "NOT (" + clause + ")", nil

	default:
		pair, err := json.Marshal(map[string]any{key: value})
		if err != nil {
			return "", fmt.Errorf("filter: encode %q: %w", key, err)
		}
		fc.args = append(fc.args, pair)
		return fmt.Sprintf("metadata @> $%d", len(fc.args)), nil
	}
}
