package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/learnhub/internal/client/storage"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	session, err := c.store.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'learnhub login' to authenticate.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	c.io.Println("Status: Authenticated")
	c.io.Printf("User: %s <%s>\n", session.Identity.Name, session.Identity.Email)

	expiresAt, err := tokenExpiry(session.AccessToken)
	if err != nil {
		c.io.Printf("Token expires: unknown (%v)\n", err)
		return nil
	}

	c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))
	if remaining := time.Until(expiresAt); remaining > 0 {
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	} else {
		c.io.Println("Access token has expired, it will be refreshed on the next request.")
	}

	return nil
}

// tokenExpiry читает exp без проверки подписи: ключа у клиента нет
func tokenExpiry(token string) (time.Time, error) {
	claims := gojwt.RegisteredClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp")
	}
	return claims.ExpiresAt.Time, nil
}
