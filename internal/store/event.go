package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

type EventStore struct {
	db DBTX
}

func NewEventStore(db DBTX) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, family_id, title, description, location, start_time, end_time, all_day, category_id,
	recurrence_rule, is_task, is_required, reward_points, created_by, is_override, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var endTime sql.NullTime
	var categoryID, createdBy sql.NullInt64
	var rule string

	err := scanner.Scan(&e.ID, &e.FamilyID, &e.Title, &e.Description, &e.Location, &e.StartTime, &endTime,
		&e.AllDay, &categoryID, &rule, &e.IsTask, &e.IsRequired, &e.RewardPoints, &createdBy, &e.IsOverride,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.StartTime = e.StartTime.UTC()
	e.EndTime = optionalTime(endTime)
	e.CategoryID = optionalInt64(categoryID)
	e.CreatedBy = optionalInt64(createdBy)

	r, err := recurrence.Parse(rule)
	if err != nil {
		// A rule that no longer parses degrades to a one-off event.
		slog.Warn("invalid recurrence rule", "event_id", e.ID, "rule", rule, "error", err)
		r = recurrence.NoRecurrence()
	}
	e.Recurrence = r
	return &e, nil
}

func optionalTime(t sql.NullTime) mo.Option[time.Time] {
	if !t.Valid {
		return mo.None[time.Time]()
	}
	return mo.Some(t.Time.UTC())
}

func optionalInt64(n sql.NullInt64) mo.Option[int64] {
	if !n.Valid {
		return mo.None[int64]()
	}
	return mo.Some(n.Int64)
}

func nullTime(o mo.Option[time.Time]) sql.NullTime {
	t, ok := o.Get()
	if !ok {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt64(o mo.Option[int64]) sql.NullInt64 {
	n, ok := o.Get()
	if !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

// Create inserts the event and its participants. ID and timestamps on e are
// ignored.
func (s *EventStore) Create(ctx context.Context, e *model.Event) (*model.Event, error) {
	var id int64
	err := InTx(ctx, s.db, func(tx DBTX) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO events (family_id, title, description, location, start_time, end_time, all_day, category_id,
				recurrence_rule, is_task, is_required, reward_points, created_by, is_override)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.FamilyID, e.Title, e.Description, e.Location, e.StartTime.UTC(), nullTime(e.EndTime),
			boolToInt(e.AllDay), nullInt64(e.CategoryID), e.Recurrence.String(), boolToInt(e.IsTask),
			boolToInt(e.IsRequired), e.RewardPoints, nullInt64(e.CreatedBy), boolToInt(e.IsOverride),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return setParticipants(ctx, tx, id, e.Participants)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	participants, err := s.participants(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	e.Participants = participants[id]
	return e, nil
}

// Update overwrites every mutable field of the event, participants included.
func (s *EventStore) Update(ctx context.Context, e *model.Event) (*model.Event, error) {
	err := InTx(ctx, s.db, func(tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE events
			 SET title = ?, description = ?, location = ?, start_time = ?, end_time = ?, all_day = ?, category_id = ?,
				recurrence_rule = ?, is_task = ?, is_required = ?, reward_points = ?
			 WHERE id = ?`,
			e.Title, e.Description, e.Location, e.StartTime.UTC(), nullTime(e.EndTime), boolToInt(e.AllDay),
			nullInt64(e.CategoryID), e.Recurrence.String(), boolToInt(e.IsTask), boolToInt(e.IsRequired),
			e.RewardPoints, e.ID,
		)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		return setParticipants(ctx, tx, e.ID, e.Participants)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, e.ID)
}

// SetRecurrence replaces only the recurrence rule of an event.
func (s *EventStore) SetRecurrence(ctx context.Context, id int64, rule recurrence.Rule) error {
	_, err := s.db.ExecContext(ctx, `UPDATE events SET recurrence_rule = ? WHERE id = ?`, rule.String(), id)
	if err != nil {
		return fmt.Errorf("set recurrence: %w", err)
	}
	return nil
}

func (s *EventStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// DeleteByIDs removes the given events, typically override rows.
func (s *EventStore) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

// ListCandidates returns the family's master events that may produce an
// occurrence between from and to (inclusive instants). Recurring events are
// returned whenever they start by to; the caller narrows them further.
// Override rows are never candidates.
func (s *EventStore) ListCandidates(ctx context.Context, familyID int64, from, to time.Time) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events
		 WHERE family_id = ? AND is_override = 0 AND start_time <= ?
		   AND (recurrence_rule != '' OR COALESCE(end_time, start_time) >= ?)
		 ORDER BY start_time ASC, created_at ASC, id ASC`,
		familyID, to.UTC(), from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query candidate events: %w", err)
	}
	return s.collect(ctx, rows)
}

// ListByIDs loads events by id, in id order.
func (s *EventStore) ListByIDs(ctx context.Context, ids []int64) ([]model.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query events by id: %w", err)
	}
	return s.collect(ctx, rows)
}

func (s *EventStore) collect(ctx context.Context, rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	var ids []int64
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	participants, err := s.participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Participants = participants[events[i].ID]
	}
	return events, nil
}

func (s *EventStore) participants(ctx context.Context, eventIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, member_id FROM event_participants
		 WHERE event_id IN (`+placeholders(len(eventIDs))+`) ORDER BY event_id, member_id`,
		int64Args(eventIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, memberID int64
		if err := rows.Scan(&eventID, &memberID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[eventID] = append(out[eventID], memberID)
	}
	return out, rows.Err()
}

func setParticipants(ctx context.Context, tx DBTX, eventID int64, memberIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_participants WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	for _, memberID := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_participants (event_id, member_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			eventID, memberID,
		); err != nil {
			return fmt.Errorf("insert participant %d: %w", memberID, err)
		}
	}
	return nil
}
