package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/learnhub/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context, args []string) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = c.io.ReadInput("Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	resp, err := c.client.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Logged in as %s <%s>\n", resp.Name, resp.Email)

	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	// Локальная сессия удаляется даже при ошибке сервера
	if err := c.client.Logout(ctx); err != nil {
		c.io.Printf("Warning: server logout failed: %v\n", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")

	return nil
}
