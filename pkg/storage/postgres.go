package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const artifactsTable = "research_artifacts"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres keeps artifacts in the research_artifacts table. Links point at
// the HTTP server's download route.
type Postgres struct {
	DB      DBTX
	BaseURL string
}

func NewPostgres(db DBTX, baseURL string) *Postgres {
	return &Postgres{DB: db, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (p *Postgres) Save(ctx context.Context, content, filename string) (string, error) {
	if err := validateName(filename); err != nil {
		return "", err
	}
	query, args, err := psql.Insert(artifactsTable).
		Columns("filename", "content").
		Values(filename, content).
		Suffix("ON CONFLICT (filename) DO NOTHING").
		ToSql()
	if err != nil {
		return "", err
	}
	tag, err := p.DB.Exec(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("insert artifact %s: %w", filename, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%s: %w", filename, ErrExists)
	}
	return artifactsTable + "/" + filename, nil
}

func (p *Postgres) URLFor(_ context.Context, filename string) (string, error) {
	if err := validateName(filename); err != nil {
		return "", err
	}
	return p.BaseURL + "/api/artifacts/" + url.PathEscape(filename), nil
}

func (p *Postgres) Exists(ctx context.Context, filename string) (bool, error) {
	query, args, err := psql.Select("1").From(artifactsTable).Where(sq.Eq{"filename": filename}).Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = p.DB.QueryRow(ctx, query, args...).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("lookup artifact %s: %w", filename, err)
	}
}

func (p *Postgres) Read(ctx context.Context, filename string) (string, error) {
	query, args, err := psql.Select("content").From(artifactsTable).Where(sq.Eq{"filename": filename}).ToSql()
	if err != nil {
		return "", err
	}
	var content string
	if err := p.DB.QueryRow(ctx, query, args...).Scan(&content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", filename, ErrNotFound)
		}
		return "", fmt.Errorf("read artifact %s: %w", filename, err)
	}
	return content, nil
}
