package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
)

type FamilyMemberStore struct {
	db DBTX
}

func NewFamilyMemberStore(db DBTX) *FamilyMemberStore {
	return &FamilyMemberStore{db: db}
}

func scanFamilyMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var role string
	err := scanner.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Color, &m.AvatarEmoji, &role, &m.HasPIN, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	return &m, nil
}

const familyMemberCols = `id, family_id, name, color, avatar_emoji, role, pin IS NOT NULL, sort_order, created_at, updated_at`

func (s *FamilyMemberStore) Create(ctx context.Context, familyID int64, name, color, avatarEmoji string, role model.Role) (*model.FamilyMember, error) {
	var maxOrder int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sort_order), -1) FROM family_members WHERE family_id = ?", familyID,
	).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	if color == "" {
		color = "#3B82F6"
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO family_members (family_id, name, color, avatar_emoji, role, sort_order) VALUES (?, ?, ?, ?, ?, ?)",
		familyID, name, color, avatarEmoji, string(role), maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *FamilyMemberStore) List(ctx context.Context, familyID int64) ([]model.FamilyMember, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+familyMemberCols+" FROM family_members WHERE family_id = ? ORDER BY sort_order, id", familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanFamilyMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *FamilyMemberStore) GetByID(ctx context.Context, id int64) (*model.FamilyMember, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+familyMemberCols+" FROM family_members WHERE id = ?", id)
	m, err := scanFamilyMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family member: %w", err)
	}
	return m, nil
}

func (s *FamilyMemberStore) Update(ctx context.Context, id int64, name, color, avatarEmoji string, role model.Role) (*model.FamilyMember, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE family_members SET name = ?, color = ?, avatar_emoji = ?, role = ? WHERE id = ?",
		name, color, avatarEmoji, string(role), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family member: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyMemberStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM family_members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	return nil
}

// UpdateSortOrder assigns sort positions in the order the ids are given.
func (s *FamilyMemberStore) UpdateSortOrder(ctx context.Context, familyID int64, ids []int64) error {
	return InTx(ctx, s.db, func(tx DBTX) error {
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx,
				"UPDATE family_members SET sort_order = ? WHERE id = ? AND family_id = ?", i, id, familyID,
			); err != nil {
				return fmt.Errorf("update sort order for id %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *FamilyMemberStore) SetPIN(ctx context.Context, id int64, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE family_members SET pin = ? WHERE id = ?", hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) ClearPIN(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE family_members SET pin = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// GetPINHash returns the stored hash, or "" when the member has no PIN.
func (s *FamilyMemberStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT pin FROM family_members WHERE id = ?", id).Scan(&pin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("family member not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}

func (s *FamilyMemberStore) NameExists(ctx context.Context, familyID int64, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM family_members WHERE family_id = ? AND name = ? AND id != ?",
		familyID, name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}
