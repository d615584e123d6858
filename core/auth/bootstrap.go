package auth

import (
	"context"
	"fmt"
	"strings"

	"truthlink/config"
	"truthlink/core/store"
	"truthlink/core/utils"
)

// EnsureDefaultAdmin seeds the first investigator account when the user
// table is empty. Signup is closed; accounts are provisioned, never
// self-registered, so the anonymous tracker can never escalate.
func EnsureDefaultAdmin(ctx context.Context, users store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) error {
	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	username := strings.ToLower(strings.TrimSpace(cfg.Bootstrap.AdminUsername))
	if username == "" {
		username = "admin"
	}
	password := cfg.Bootstrap.AdminPassword
	generated := false
	if password == "" {
		password, err = utils.RandString(18)
		if err != nil {
			return fmt.Errorf("generate admin password: %w", err)
		}
		generated = true
	}
	ph, err := HashPassword(password, cfg.Pepper)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	u := &store.User{
		Username:     username,
		FullName:     "Default Administrator",
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		Active:       true,
	}
	if _, err := users.Create(ctx, u, []string{"admin"}); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	if logger != nil {
		if generated {
			logger.Printf("seeded admin account %q with one-time password: %s", username, password)
		} else {
			logger.Printf("seeded admin account %q", username)
		}
	}
	return nil
}
