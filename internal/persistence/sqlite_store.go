package persistence

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mkardel/flowgraph/pkg/api"
)

// SQLiteStore is an InvocationStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ InvocationStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database
// and returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			status TEXT NOT NULL,
			inputs BLOB,
			outputs BLOB,
			failed_step TEXT,
			error TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_invocations_workflow ON invocations (workflow);
		CREATE INDEX IF NOT EXISTS idx_invocations_status ON invocations (status);`,
	)
	return err
}

func (s *SQLiteStore) SaveInvocation(inv *api.Invocation) error {
	inputs, outputs, errStr, err := encodeRecord(inv)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO invocations (id, workflow, status, inputs, outputs, failed_step, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.Workflow,
		string(inv.Status),
		inputs,
		outputs,
		inv.FailedStep,
		errStr,
		timestamp(inv.StartedAt),
		timestamp(inv.FinishedAt),
	)
	return err
}

func (s *SQLiteStore) UpdateInvocation(inv *api.Invocation) error {
	inputs, outputs, errStr, err := encodeRecord(inv)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE invocations
		SET workflow = ?, status = ?, inputs = ?, outputs = ?, failed_step = ?, error = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		inv.Workflow,
		string(inv.Status),
		inputs,
		outputs,
		inv.FailedStep,
		errStr,
		timestamp(inv.StartedAt),
		timestamp(inv.FinishedAt),
		inv.ID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvocationNotFound
	}
	return nil
}

func (s *SQLiteStore) GetInvocation(id string) (*api.Invocation, error) {
	row := s.db.QueryRow(`
		SELECT id, workflow, status, inputs, outputs, failed_step, error, started_at, finished_at
		FROM invocations
		WHERE id = ?`,
		id,
	)

	inv, err := scanInvocation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvocationNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (s *SQLiteStore) ListInvocations(filter api.InvocationFilter) ([]*api.Invocation, error) {
	query := `
		SELECT id, workflow, status, inputs, outputs, failed_step, error, started_at, finished_at
		FROM invocations`
	var args []any
	var clauses []string

	if filter.Workflow != "" {
		clauses = append(clauses, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invocations []*api.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows.Scan)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invocations, nil
}

func encodeRecord(inv *api.Invocation) (inputs, outputs []byte, errStr string, err error) {
	inputs, err = EncodeValues(inv.Inputs)
	if err != nil {
		return nil, nil, "", err
	}
	outputs, err = EncodeValues(inv.Outputs)
	if err != nil {
		return nil, nil, "", err
	}
	if inv.Err != nil {
		errStr = inv.Err.Error()
	}
	return inputs, outputs, errStr, nil
}

func scanInvocation(scan func(dest ...any) error) (*api.Invocation, error) {
	var inv api.Invocation
	var statusStr string
	var inputs, outputs []byte
	var failedStep, errStr sql.NullString
	var startedAt, finishedAt int64

	if err := scan(&inv.ID, &inv.Workflow, &statusStr, &inputs, &outputs, &failedStep, &errStr, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	inv.Status = api.Status(statusStr)
	inv.FailedStep = failedStep.String
	inv.StartedAt = fromTimestamp(startedAt)
	inv.FinishedAt = fromTimestamp(finishedAt)
	if errStr.Valid && errStr.String != "" {
		inv.Err = errors.New(errStr.String)
	}

	var err error
	if inv.Inputs, err = DecodeValues(inputs); err != nil {
		return nil, err
	}
	if inv.Outputs, err = DecodeValues(outputs); err != nil {
		return nil, err
	}
	return &inv, nil
}

// timestamp maps a time to unix nanoseconds, keeping zero times as 0 so
// unfinished invocations round-trip with a zero FinishedAt.
func timestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromTimestamp(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
