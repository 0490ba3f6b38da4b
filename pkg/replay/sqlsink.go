package replay

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// SQLSink persists frames to Postgres, one row per tick, plus a single
// metadata row. Grounded on pkg/session.SQLStore's database/sql usage and
// table-name configurability; re-evaluation records are Postgres-only
// (jsonb columns), so SQLStore's MySQL/SQLite dialect branching has no
// counterpart here.
type SQLSink struct {
	db            *sql.DB
	landID        string
	metadataTable string
	framesTable   string
}

// SQLSinkOption configures an SQLSink.
type SQLSinkOption func(*sqlSinkConfig)

type sqlSinkConfig struct {
	metadataTable string
	framesTable   string
}

// WithMetadataTable overrides the metadata table name. Default: "recording_metadata".
func WithMetadataTable(name string) SQLSinkOption {
	return func(c *sqlSinkConfig) { c.metadataTable = name }
}

// WithFramesTable overrides the frames table name. Default: "recording_frames".
func WithFramesTable(name string) SQLSinkOption {
	return func(c *sqlSinkConfig) { c.framesTable = name }
}

// NewSQLSink constructs a sink recording landID's frames into db.
func NewSQLSink(db *sql.DB, landID string, opts ...SQLSinkOption) *SQLSink {
	cfg := &sqlSinkConfig{metadataTable: "recording_metadata", framesTable: "recording_frames"}
	for _, opt := range opts {
		opt(cfg)
	}
	return &SQLSink{db: db, landID: landID, metadataTable: cfg.metadataTable, framesTable: cfg.framesTable}
}

// CreateTables creates the sink's tables if they don't already exist.
func (s *SQLSink) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			land_id VARCHAR(128) PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, s.metadataTable))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			land_id VARCHAR(128) NOT NULL,
			tick_id BIGINT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (land_id, tick_id)
		)
	`, s.framesTable))
	return err
}

// WriteMetadata implements Sink.
func (s *SQLSink) WriteMetadata(meta Metadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (land_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (land_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, s.metadataTable), s.landID, payload)
	return err
}

// AppendFrames implements Sink. Frames already present for (landID, tickID)
// are left untouched, so a retried flush after a logged I/O failure never
// double-writes.
func (s *SQLSink) AppendFrames(frames []FrameRecord) error {
	if len(frames) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (land_id, tick_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (land_id, tick_id) DO NOTHING
	`, s.framesTable))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		payload, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, s.landID, f.TickID, payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close implements Sink. It does not close the underlying *sql.DB, which
// may be shared with other sinks or components.
func (s *SQLSink) Close() error { return nil }
