package auth

import (
	"context"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
)

type contextKey struct{}

// Context identifies the family member a request acts as.
type Context struct {
	FamilyID int64
	MemberID int64
	Role     model.Role
}

func WithAuth(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

func FamilyID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.FamilyID
}

func MemberID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.MemberID
}

func IsParent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleParent
}

// CanActFor reports whether the caller may act on behalf of memberID.
// Parents act for anyone in their family; children only for themselves.
func CanActFor(ctx context.Context, memberID int64) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleParent || ac.MemberID == memberID
}
