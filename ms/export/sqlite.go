package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// SQLite writes the container into a SQLite database image with the tables
// container (metadata), curves, points and peaks.
type SQLite struct{}

func (SQLite) Name() string        { return "sqlite" }
func (SQLite) Description() string { return "SQLite database with curves, points and peaks tables" }

const sqliteSchema = `
CREATE TABLE container (
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE curves (
  id      TEXT PRIMARY KEY,
  type    TEXT NOT NULL,
  x_label TEXT,
  x_unit  TEXT,
  y_label TEXT,
  y_unit  TEXT,
  points  INTEGER NOT NULL,
  x_min   REAL,
  x_max   REAL,
  y_min   REAL,
  y_max   REAL,
  mz_min  REAL,
  mz_max  REAL
);

CREATE TABLE points (
  curve_id TEXT NOT NULL REFERENCES curves(id),
  idx      INTEGER NOT NULL,
  x        REAL NOT NULL,
  y        REAL NOT NULL,
  PRIMARY KEY (curve_id, idx)
);

CREATE TABLE peaks (
  id               TEXT PRIMARY KEY,
  curve_id         TEXT NOT NULL,
  center           REAL,
  amplitude        REAL,
  fwhm             REAL,
  area             REAL,
  r_squared        REAL,
  quality          REAL,
  overlap_resolved INTEGER NOT NULL,
  shape            TEXT,
  left_bound       REAL,
  right_bound      REAL,
  metadata         TEXT
);

CREATE INDEX idx_peaks_curve ON peaks(curve_id, center);
`

var errNoSerializer = errors.New("export: sqlite driver cannot serialize")

func (SQLite) Export(c *model.Container, cfg Config) (Payload, error) {
	if err := prepare(c, cfg); err != nil {
		return Payload{}, err
	}

	ctx := context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return Payload{}, fmt.Errorf("export: open sqlite: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return Payload{}, fmt.Errorf("export: sqlite connection: %w", err)
	}
	defer conn.Close()

	if err := fill(ctx, conn, c, cfg); err != nil {
		return Payload{}, err
	}

	data, err := serialize(conn)
	if errors.Is(err, errNoSerializer) {
		data, err = vacuum(ctx, conn)
	}

	if err != nil {
		return Payload{}, err
	}

	return Payload{Name: fileName(c, ".sqlite"), ContentType: "application/vnd.sqlite3", Data: data}, nil
}

func fill(ctx context.Context, conn *sql.Conn, c *model.Container, cfg Config) error {
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("export: sqlite schema: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export: sqlite begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if cfg.IncludeMetadata {
		for k, v := range cleanMap(c.Metadata) {
			text, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("export: metadata %s: %w", k, err)
			}

			if _, err := tx.ExecContext(ctx, `INSERT INTO container (key, value) VALUES (?, ?)`, k, string(text)); err != nil {
				return fmt.Errorf("export: insert metadata: %w", err)
			}
		}
	}

	point, err := tx.PrepareContext(ctx, `INSERT INTO points (curve_id, idx, x, y) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("export: prepare points: %w", err)
	}
	defer point.Close()

	for _, cv := range cfg.curves(c) {
		var mzMin, mzMax any
		if cv.MZRange != nil && !cv.MZRange.Full {
			mzMin, mzMax = cv.MZRange.Min, cv.MZRange.Max
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO curves (id, type, x_label, x_unit, y_label, y_unit, points, x_min, x_max, y_min, y_max, mz_min, mz_max)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cv.ID, string(cv.Type), cv.XLabel, cv.XUnit, cv.YLabel, cv.YUnit, cv.Len(),
			finite(cv.XMin), finite(cv.XMax), finite(cv.YMin), finite(cv.YMax), mzMin, mzMax)
		if err != nil {
			return fmt.Errorf("export: insert curve %s: %w", cv.ID, err)
		}

		for i := range cv.X {
			if _, err := point.ExecContext(ctx, cv.ID, i, finite(cv.X[i]), finite(cv.Y[i])); err != nil {
				return fmt.Errorf("export: insert point %s/%d: %w", cv.ID, i, err)
			}
		}
	}

	for _, p := range cfg.peaks(c) {
		var metadata any
		if cfg.IncludeMetadata {
			text, err := json.Marshal(cleanMap(p.Metadata))
			if err != nil {
				return fmt.Errorf("export: peak %s metadata: %w", p.ID, err)
			}

			metadata = string(text)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO peaks (id, curve_id, center, amplitude, fwhm, area, r_squared, quality, overlap_resolved, shape, left_bound, right_bound, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.CurveID, finite(p.Center), finite(p.Amplitude), finite(p.FWHM), finite(p.Area),
			finite(p.RSquared), finite(p.Quality), p.OverlapResolved, p.Shape,
			finite(p.LeftBound), finite(p.RightBound), metadata)
		if err != nil {
			return fmt.Errorf("export: insert peak %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export: sqlite commit: %w", err)
	}

	return nil
}

// serialize returns the image of the in-memory database.
func serialize(conn *sql.Conn) ([]byte, error) {
	var data []byte

	err := conn.Raw(func(dc any) error {
		s, ok := dc.(interface{ Serialize() ([]byte, error) })
		if !ok {
			return errNoSerializer
		}

		var err error

		data, err = s.Serialize()

		return err
	})
	if err != nil {
		if errors.Is(err, errNoSerializer) {
			return nil, err
		}

		return nil, fmt.Errorf("export: serialize sqlite: %w", err)
	}

	return data, nil
}

// vacuum copies the database through a scratch file when the driver cannot
// serialize.
func vacuum(ctx context.Context, conn *sql.Conn) ([]byte, error) {
	dir, err := os.MkdirTemp("", "spectro-export-")
	if err != nil {
		return nil, fmt.Errorf("export: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "export.sqlite")
	if _, err := conn.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("export: vacuum sqlite: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read sqlite image: %w", err)
	}

	return data, nil
}
