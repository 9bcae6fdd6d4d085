package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func (c *Cli) runWhoami(ctx context.Context) error {
	user, err := c.client.Me(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("ID: %s\n", user.ID)
	c.io.Printf("Email: %s\n", user.Email)
	c.io.Printf("Name: %s\n", user.Name)
	return nil
}

// runGet выполняет GET через guard и печатает тело ответа
func (c *Cli) runGet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: learnhub get <path>")
	}
	path := args[0]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	resp, err := c.client.Fetch(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	c.io.Printf("%s\n", resp.Status)
	if _, err := io.Copy(c.io, resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	c.io.Println()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
