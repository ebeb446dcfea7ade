package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/pkg/errors"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
)

const schema = `
CREATE TABLE IF NOT EXISTS flight_plans (
	uuid TEXT PRIMARY KEY,
	project_uuid TEXT NOT NULL,
	title TEXT NOT NULL,
	state TEXT NOT NULL,
	data_setting BLOB,
	last_mission_item_executed INTEGER NOT NULL DEFAULT -1,
	recovery_resource_id TEXT NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL DEFAULT 0,
	reached_first_waypoint INTEGER NOT NULL DEFAULT 0,
	reached_last_waypoint INTEGER NOT NULL DEFAULT 0,
	execution_rank INTEGER NOT NULL DEFAULT 0,
	last_update_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_flight_plans_project ON flight_plans(project_uuid, last_update_ns);
`

const columns = `uuid, project_uuid, title, state, data_setting, last_mission_item_executed,
	recovery_resource_id, duration_ns, reached_first_waypoint, reached_last_waypoint,
	execution_rank, last_update_ns`

type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithMessage(err, "failed to create directory")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.WithMessage(err, "failed to open database")
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "failed to ping database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "failed to initialize schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, uuid string) (*flightplan.FlightPlan, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM flight_plans WHERE uuid = ?", uuid)
	fp, err := scanFlightPlan(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "get %s", uuid)
	}
	return fp, nil
}

func (s *SQLite) Put(ctx context.Context, fp *flightplan.FlightPlan) error {
	blob, err := encodeDataSetting(fp.DataSetting)
	if err != nil {
		return errors.WithMessagef(err, "put %s", fp.UUID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flight_plans (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			project_uuid = excluded.project_uuid,
			title = excluded.title,
			state = excluded.state,
			data_setting = excluded.data_setting,
			last_mission_item_executed = excluded.last_mission_item_executed,
			recovery_resource_id = excluded.recovery_resource_id,
			duration_ns = excluded.duration_ns,
			reached_first_waypoint = excluded.reached_first_waypoint,
			reached_last_waypoint = excluded.reached_last_waypoint,
			execution_rank = excluded.execution_rank,
			last_update_ns = excluded.last_update_ns
	`,
		fp.UUID, fp.ProjectUUID, fp.Title, string(fp.State), blob, fp.LastMissionItemExecuted,
		fp.RecoveryResourceID, int64(fp.Duration), fp.HasReachedFirstWaypoint, fp.HasReachedLastWaypoint,
		fp.ExecutionRank, fp.LastUpdate.UnixNano())
	if err != nil {
		return errors.WithMessagef(err, "put %s", fp.UUID)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM flight_plans WHERE uuid = ?", uuid)
	if err != nil {
		return errors.WithMessagef(err, "delete %s", uuid)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListByProject(ctx context.Context, projectUUID string) ([]*flightplan.FlightPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM flight_plans WHERE project_uuid = ? ORDER BY last_update_ns DESC, uuid",
		projectUUID)
	if err != nil {
		return nil, errors.WithMessagef(err, "list project %s", projectUUID)
	}
	defer rows.Close()

	var result []*flightplan.FlightPlan
	for rows.Next() {
		fp, err := scanFlightPlan(rows)
		if err != nil {
			return nil, errors.WithMessagef(err, "list project %s", projectUUID)
		}
		result = append(result, fp)
	}
	return result, rows.Err()
}

// ListAll returns every stored record, most recently updated first.
func (s *SQLite) ListAll(ctx context.Context) ([]*flightplan.FlightPlan, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM flight_plans ORDER BY last_update_ns DESC, uuid")
	if err != nil {
		return nil, errors.WithMessage(err, "list")
	}
	defer rows.Close()

	var result []*flightplan.FlightPlan
	for rows.Next() {
		fp, err := scanFlightPlan(rows)
		if err != nil {
			return nil, errors.WithMessage(err, "list")
		}
		result = append(result, fp)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFlightPlan(row scanner) (*flightplan.FlightPlan, error) {
	var (
		fp       flightplan.FlightPlan
		state    string
		blob     []byte
		duration int64
		updated  int64
	)
	err := row.Scan(&fp.UUID, &fp.ProjectUUID, &fp.Title, &state, &blob, &fp.LastMissionItemExecuted,
		&fp.RecoveryResourceID, &duration, &fp.HasReachedFirstWaypoint, &fp.HasReachedLastWaypoint,
		&fp.ExecutionRank, &updated)
	if err != nil {
		return nil, err
	}

	fp.State = flightplan.ParseState(state)
	fp.Duration = time.Duration(duration)
	fp.LastUpdate = time.Unix(0, updated).UTC()
	if fp.DataSetting, err = decodeDataSetting(blob); err != nil {
		return nil, err
	}
	return &fp, nil
}
