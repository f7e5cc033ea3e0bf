package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
)

// CompletionStore is the completion ledger. A row for (event, member, date)
// means done; its absence means not done.
type CompletionStore struct {
	db DBTX
}

func NewCompletionStore(db DBTX) *CompletionStore {
	return &CompletionStore{db: db}
}

const completionCols = `id, event_id, member_id, occurrence_date, completed_at`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.Completion, error) {
	var c model.Completion
	var date string
	if err := scanner.Scan(&c.ID, &c.EventID, &c.MemberID, &date, &c.CompletedAt); err != nil {
		return nil, err
	}
	d, err := recurrence.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse occurrence date %q: %w", date, err)
	}
	c.OccurrenceDate = d
	return &c, nil
}

// Toggle flips the completion state of one occurrence for one member and
// reports the new state. Two toggles always restore the original state.
func (s *CompletionStore) Toggle(ctx context.Context, eventID, memberID int64, date time.Time) (bool, error) {
	day := recurrence.FormatDate(date)
	var completed bool
	err := InTx(ctx, s.db, func(tx DBTX) error {
		removed, err := deleteCompletion(ctx, tx, eventID, memberID, day)
		if err != nil {
			return err
		}
		if removed {
			completed = false
			return nil
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO completions (event_id, member_id, occurrence_date) VALUES (?, ?, ?)
			 ON CONFLICT (event_id, member_id, occurrence_date) DO NOTHING`,
			eventID, memberID, day,
		)
		if err != nil {
			return fmt.Errorf("insert completion: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 1 {
			completed = true
			return nil
		}

		// A concurrent toggle inserted the row first; this toggle undoes it.
		if _, err := deleteCompletion(ctx, tx, eventID, memberID, day); err != nil {
			return err
		}
		completed = false
		return nil
	})
	if err != nil {
		return false, err
	}
	return completed, nil
}

func deleteCompletion(ctx context.Context, tx DBTX, eventID, memberID int64, day string) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM completions WHERE event_id = ? AND member_id = ? AND occurrence_date = ?`,
		eventID, memberID, day,
	)
	if err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *CompletionStore) IsComplete(ctx context.Context, eventID, memberID int64, date time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM completions WHERE event_id = ? AND member_id = ? AND occurrence_date = ?)`,
		eventID, memberID, recurrence.FormatDate(date),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return exists, nil
}

func (s *CompletionStore) GetByID(ctx context.Context, id int64) (*model.Completion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+` FROM completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// ListByMember returns a member's completions, newest occurrence first.
func (s *CompletionStore) ListByMember(ctx context.Context, memberID int64) ([]model.Completion, error) {
	return s.list(ctx,
		`SELECT `+completionCols+` FROM completions WHERE member_id = ?
		 ORDER BY occurrence_date DESC, completed_at DESC, id DESC`,
		memberID,
	)
}

func (s *CompletionStore) ListByEventAndDate(ctx context.Context, eventID int64, date time.Time) ([]model.Completion, error) {
	return s.list(ctx,
		`SELECT `+completionCols+` FROM completions WHERE event_id = ? AND occurrence_date = ?
		 ORDER BY completed_at, id`,
		eventID, recurrence.FormatDate(date),
	)
}

// ListByFamilyRange returns the completions recorded against the family's
// events for occurrence dates in [from, to].
func (s *CompletionStore) ListByFamilyRange(ctx context.Context, familyID int64, from, to time.Time) ([]model.Completion, error) {
	return s.list(ctx,
		`SELECT c.id, c.event_id, c.member_id, c.occurrence_date, c.completed_at
		 FROM completions c JOIN events e ON e.id = c.event_id
		 WHERE e.family_id = ? AND c.occurrence_date >= ? AND c.occurrence_date <= ?
		 ORDER BY c.occurrence_date, c.id`,
		familyID, recurrence.FormatDate(from), recurrence.FormatDate(to),
	)
}

func (s *CompletionStore) list(ctx context.Context, query string, args ...any) ([]model.Completion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Reassign moves completions dated on or after from from one event to
// another, as when a series is split.
func (s *CompletionStore) Reassign(ctx context.Context, fromEventID, toEventID int64, from time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE completions SET event_id = ? WHERE event_id = ? AND occurrence_date >= ?`,
		toEventID, fromEventID, recurrence.FormatDate(from),
	)
	if err != nil {
		return 0, fmt.Errorf("reassign completions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteFrom removes an event's completions dated on or after from.
func (s *CompletionStore) DeleteFrom(ctx context.Context, eventID int64, from time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM completions WHERE event_id = ? AND occurrence_date >= ?`,
		eventID, recurrence.FormatDate(from),
	)
	if err != nil {
		return fmt.Errorf("delete completions: %w", err)
	}
	return nil
}

// DeleteOn removes an event's completions for a single occurrence date.
func (s *CompletionStore) DeleteOn(ctx context.Context, eventID int64, date time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM completions WHERE event_id = ? AND occurrence_date = ?`,
		eventID, recurrence.FormatDate(date),
	)
	if err != nil {
		return fmt.Errorf("delete completions: %w", err)
	}
	return nil
}
