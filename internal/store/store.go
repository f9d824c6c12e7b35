package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/logger"
	"github.com/spigell/edge-shortlister/internal/talent"
)

// DefaultKeyColumn is the candidate id column of the vendor export.
const DefaultKeyColumn = "Candidate: ID"

// Config selects and configures the master table backend.
type Config struct {
	Backend   string   `mapstructure:"backend"`
	KeyColumn string   `mapstructure:"key-column"`
	Path      string   `mapstructure:"path"`
	S3        S3Config `mapstructure:"s3"`
}

// Summary reports what a sync did.
type Summary struct {
	Location   string
	KeyColumn  string
	Before     int
	Incoming   int
	After      int
	Duplicates int
	NewColumns []string
}

// Store owns the master table. Writes are whole-table overwrites; the last writer wins.
type Store struct {
	backend   Backend
	keyColumn string
	logger    *zap.Logger
}

func New(backend Backend, keyColumn string, l *zap.Logger) *Store {
	return &Store{backend: backend, keyColumn: keyColumn, logger: logger.OrNop(l)}
}

// Open builds a Store from cfg.
func Open(ctx context.Context, cfg Config, l *zap.Logger) (*Store, error) {
	key := cfg.KeyColumn
	if strings.TrimSpace(key) == "" {
		key = DefaultKeyColumn
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, errors.New("store.path is required for the file backend")
		}
		return New(&FileBackend{Path: cfg.Path}, key, l), nil
	case "s3":
		backend, err := NewS3Backend(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("creating s3 backend: %w", err)
		}
		return New(backend, key, l), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Location describes where the master table lives.
func (s *Store) Location() string { return s.backend.String() }

// Load returns the master table, or nil when none was saved yet.
func (s *Store) Load(ctx context.Context) (*talent.Table, error) {
	t, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading master table: %w", err)
	}
	return t, nil
}

// Sync merges each incoming table into the master table in order and saves the result.
func (s *Store) Sync(ctx context.Context, incoming ...*talent.Table) (*Summary, error) {
	master, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Location: s.Location(), Before: master.Len()}

	merged := master
	for _, t := range incoming {
		if t == nil {
			continue
		}
		summary.Incoming += t.Len()
		summary.NewColumns = append(summary.NewColumns, newColumns(merged, t)...)
		merged = Merge(merged, t, s.keyColumn)
	}

	if merged == nil {
		return nil, errors.New("nothing to sync: no master table and no incoming rows")
	}

	if idx := KeyColumn(merged.Header, s.keyColumn); idx >= 0 {
		summary.KeyColumn = merged.Header[idx]
	}
	summary.After = merged.Len()
	summary.Duplicates = summary.Before + summary.Incoming - summary.After

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("saving master table: %w", err)
	}

	s.logger.Info("master table synced",
		zap.String("location", summary.Location),
		zap.String("key_column", summary.KeyColumn),
		zap.Int("before", summary.Before),
		zap.Int("incoming", summary.Incoming),
		zap.Int("after", summary.After),
		zap.Int("duplicates", summary.Duplicates),
		zap.Strings("new_columns", summary.NewColumns),
	)

	return summary, nil
}

func newColumns(existing, incoming *talent.Table) []string {
	if existing == nil {
		return nil
	}
	var out []string
	for _, name := range incoming.Header {
		if existing.Index(name) < 0 {
			out = append(out, name)
		}
	}
	return out
}
