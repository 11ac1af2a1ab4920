package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const insertLogSQL = `
	INSERT INTO research_logs (job_id, timestamp, level, message, metadata)
	VALUES ($1, $2, $3, $4, $5)
`

// Execer is the part of pgxpool.Pool the handler needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DBHandler is a slog.Handler that writes records to research_logs for one
// job. Records below Level are dropped.
type DBHandler struct {
	DB    Execer
	JobID uuid.UUID
	Level slog.Leveler

	attrs  []slog.Attr
	groups []string
}

func NewDBHandler(db Execer, jobID uuid.UUID) *DBHandler {
	return &DBHandler{DB: db, JobID: jobID, Level: slog.LevelInfo}
}

func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.Level != nil {
		threshold = h.Level.Level()
	}
	return level >= threshold
}

func (h *DBHandler) Handle(_ context.Context, r slog.Record) error {
	meta := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		meta[a.Key] = attrValue(a.Value)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		meta[key] = attrValue(a.Value)
		return true
	})

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Logs must outlive a cancelled request, so the insert ignores ctx.
	_, err = h.DB.Exec(context.Background(), insertLogSQL, h.JobID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		out := map[string]any{}
		for _, a := range v.Group() {
			out[a.Key] = attrValue(a.Value)
		}
		return out
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}

// Tee fans records out to several handlers.
type Tee []slog.Handler

func (t Tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t Tee) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(Tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t Tee) WithGroup(name string) slog.Handler {
	out := make(Tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
