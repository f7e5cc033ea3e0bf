package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/config"
	"github.com/patrikBLMelander/familyApp-sub002/internal/database"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
)

// issueToken prints a device token for an existing member, or creates a
// family with a first parent when -member is omitted.
func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	memberID := fs.Int64("member", 0, "member to issue the token for")
	familyName := fs.String("family", "Family", "name of the family to create")
	parentName := fs.String("name", "Parent", "name of the first parent")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	members := store.NewFamilyMemberStore(db)

	var member *model.FamilyMember
	if *memberID != 0 {
		member, err = members.GetByID(ctx, *memberID)
		if err != nil {
			return fmt.Errorf("get member: %w", err)
		}
		if member == nil {
			return fmt.Errorf("member %d not found", *memberID)
		}
	} else {
		family, err := store.NewFamilyStore(db).Create(ctx, *familyName, cfg.Timezone)
		if err != nil {
			return fmt.Errorf("create family: %w", err)
		}
		member, err = members.Create(ctx, family.ID, *parentName, "", "", model.RoleParent)
		if err != nil {
			return fmt.Errorf("create parent: %w", err)
		}
		fmt.Fprintf(os.Stderr, "created family %d with parent %d\n", family.ID, member.ID)
	}

	token, err := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL).Issue(member)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}
