/*
seed.go - Initial data for a fresh database

PURPOSE:
  Makes a new deployment usable without manual SQL: ensures the role
  catalog exists and creates the first admin account from configuration.
  Safe to run on every boot.

SEE ALSO:
  - cmd/server/main.go: calls Seed before serving
*/
package api

import (
	"context"
	"fmt"
	"log"

	"github.com/clubworks/club-backoffice/club"
)

// SeedConfig carries the bootstrap admin credentials.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Seed ensures roles exist and creates the bootstrap admin account when
// no account with that email exists yet.
func Seed(ctx context.Context, store club.Store, cfg SeedConfig) error {
	for _, role := range []string{club.RoleUser, club.RoleAdmin, club.RoleSuperAdmin} {
		if err := store.EnsureRole(ctx, role); err != nil {
			return fmt.Errorf("seeding role %q: %w", role, err)
		}
	}

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Println("[Seed] No admin credentials configured, skipping admin account")
		return nil
	}

	existing, err := store.GetUserByEmail(ctx, cfg.AdminEmail)
	if err != nil {
		return fmt.Errorf("checking admin account: %w", err)
	}
	if existing != nil {
		return nil
	}

	admin := club.User{
		Email:    cfg.AdminEmail,
		FullName: "Administrator",
		IsActive: true,
		Roles:    []string{club.RoleSuperAdmin, club.RoleAdmin},
	}
	if err := admin.SetPassword(cfg.AdminPassword); err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	if err := store.CreateUser(ctx, &admin); err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	log.Printf("[Seed] Created admin account %s", cfg.AdminEmail)
	return nil
}
