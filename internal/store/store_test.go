package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/database"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	db      *sql.DB
	family  *model.Family
	parent  *model.FamilyMember
	child   *model.FamilyMember
	events  *EventStore
	members *FamilyMemberStore
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := openTestDB(t)

	family, err := NewFamilyStore(db).Create(ctx, "Andersson", "Europe/Stockholm")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	members := NewFamilyMemberStore(db)
	parent, err := members.Create(ctx, family.ID, "Anna", "#FF0000", "A", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := members.Create(ctx, family.ID, "Bo", "", "B", model.RoleChild)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return &fixture{db: db, family: family, parent: parent, child: child, events: NewEventStore(db), members: members}
}

func (f *fixture) createTask(t *testing.T, title string, start time.Time, rule recurrence.Rule) *model.Event {
	t.Helper()
	e, err := f.events.Create(context.Background(), &model.Event{
		FamilyID:     f.family.ID,
		Title:        title,
		StartTime:    start,
		Recurrence:   rule,
		IsTask:       true,
		RewardPoints: 5,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestInTxRollsBackOnError(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	err := InTx(ctx, f.db, func(tx DBTX) error {
		if _, err := NewFamilyStore(tx).Create(ctx, "Doomed", ""); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	if err != sql.ErrTxDone {
		t.Fatalf("err = %v, want %v", err, sql.ErrTxDone)
	}
	if n := countRows(t, f.db, "SELECT COUNT(*) FROM families WHERE name = 'Doomed'"); n != 0 {
		t.Errorf("families = %d, want 0", n)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.n); got != tt.want {
			t.Errorf("placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
