package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

type ExceptionStore struct {
	db DBTX
}

func NewExceptionStore(db DBTX) *ExceptionStore {
	return &ExceptionStore{db: db}
}

const exceptionCols = `id, event_id, occurrence_date, modified_event_id, created_at`

func scanException(scanner interface{ Scan(...any) error }) (*model.Exception, error) {
	var x model.Exception
	var date string
	var modified sql.NullInt64
	if err := scanner.Scan(&x.ID, &x.EventID, &date, &modified, &x.CreatedAt); err != nil {
		return nil, err
	}
	d, err := recurrence.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse occurrence date %q: %w", date, err)
	}
	x.OccurrenceDate = d
	x.ModifiedEventID = optionalInt64(modified)
	return &x, nil
}

// Replace removes any exception for (eventID, date), together with its
// override row, and records a new one. A None modifiedID records a tombstone.
func (s *ExceptionStore) Replace(ctx context.Context, eventID int64, date time.Time, modifiedID mo.Option[int64]) (*model.Exception, error) {
	day := recurrence.FormatDate(date)
	var id int64
	err := InTx(ctx, s.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE id IN (
				SELECT modified_event_id FROM event_exceptions
				WHERE event_id = ? AND occurrence_date = ? AND modified_event_id IS NOT NULL)`,
			eventID, day,
		); err != nil {
			return fmt.Errorf("delete override event: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM event_exceptions WHERE event_id = ? AND occurrence_date = ?`, eventID, day,
		); err != nil {
			return fmt.Errorf("delete exception: %w", err)
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO event_exceptions (event_id, occurrence_date, modified_event_id) VALUES (?, ?, ?)`,
			eventID, day, nullInt64(modifiedID),
		)
		if err != nil {
			return fmt.Errorf("insert exception: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ExceptionStore) GetByID(ctx context.Context, id int64) (*model.Exception, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exceptionCols+` FROM event_exceptions WHERE id = ?`, id)
	x, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exception: %w", err)
	}
	return x, nil
}

func (s *ExceptionStore) GetByEventAndDate(ctx context.Context, eventID int64, date time.Time) (*model.Exception, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+exceptionCols+` FROM event_exceptions WHERE event_id = ? AND occurrence_date = ?`,
		eventID, recurrence.FormatDate(date),
	)
	x, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exception: %w", err)
	}
	return x, nil
}

// ListByEventIDs loads the exceptions of many events in one query.
func (s *ExceptionStore) ListByEventIDs(ctx context.Context, eventIDs []int64) ([]model.Exception, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exceptionCols+` FROM event_exceptions
		 WHERE event_id IN (`+placeholders(len(eventIDs))+`) ORDER BY event_id, occurrence_date`,
		int64Args(eventIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query exceptions: %w", err)
	}
	defer rows.Close()

	var out []model.Exception
	for rows.Next() {
		x, err := scanException(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		out = append(out, *x)
	}
	return out, rows.Err()
}

// DeleteFrom removes the exceptions of an event dated on or after from,
// along with their override rows.
func (s *ExceptionStore) DeleteFrom(ctx context.Context, eventID int64, from time.Time) error {
	day := recurrence.FormatDate(from)
	return InTx(ctx, s.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE id IN (
				SELECT modified_event_id FROM event_exceptions
				WHERE event_id = ? AND occurrence_date >= ? AND modified_event_id IS NOT NULL)`,
			eventID, day,
		); err != nil {
			return fmt.Errorf("delete override events: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM event_exceptions WHERE event_id = ? AND occurrence_date >= ?`, eventID, day,
		); err != nil {
			return fmt.Errorf("delete exceptions: %w", err)
		}
		return nil
	})
}

// DeleteOverrides removes every override row of an event. The exceptions
// pointing at them go with them; tombstones stay.
func (s *ExceptionStore) DeleteOverrides(ctx context.Context, eventID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id IN (
			SELECT modified_event_id FROM event_exceptions
			WHERE event_id = ? AND modified_event_id IS NOT NULL)`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("delete override events: %w", err)
	}
	return nil
}
