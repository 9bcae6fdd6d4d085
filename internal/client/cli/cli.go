// Package cli implements the commands of the learnhub client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/learnhub/internal/client/api"
	"github.com/iudanet/learnhub/internal/client/iocli"
	"github.com/iudanet/learnhub/internal/client/storage"
)

// ErrUnknownCommand is returned by Run for unsupported commands
var ErrUnknownCommand = errors.New("unknown command")

// SessionStore is the local session used by the CLI
type SessionStore interface {
	api.TokenStore
	GetSession(ctx context.Context) (*storage.Session, error)
	SaveCookies(ctx context.Context, cookies []storage.Cookie) error
}

type Cli struct {
	client    *api.Client
	store     SessionStore
	io        iocli.IO
	logger    *slog.Logger
	navigator *terminalNavigator
}

// New creates the CLI talking to serverURL.
// Refresh failures are reported to io and send the user to the login view.
func New(serverURL string, store SessionStore, io iocli.IO, logger *slog.Logger, opts ...api.Option) *Cli {
	nav := &terminalNavigator{io: io}
	opts = append([]api.Option{
		api.WithLogger(logger),
		api.WithNotifier(&terminalNotifier{io: io}),
		api.WithNavigator(nav),
		api.WithLoginView(loginView),
		// CLI завершается сразу после команды, ждать нечего
		api.WithRedirectDelay(0),
	}, opts...)

	return &Cli{
		client:    api.NewClient(serverURL, store, opts...),
		store:     store,
		io:        io,
		logger:    logger,
		navigator: nav,
	}
}

// Run executes command with its arguments.
// Cookies of the server are restored before the command and saved after it.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	c.restoreCookies(ctx)
	c.navigator.view = command

	var err error
	switch command {
	case "register":
		err = c.runRegister(ctx)
	case "login":
		err = c.runLogin(ctx, args)
	case "logout":
		err = c.runLogout(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "whoami":
		err = c.runWhoami(ctx)
	case "get":
		err = c.runGet(ctx, args)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	c.persistCookies(ctx)
	return err
}

func (c *Cli) restoreCookies(ctx context.Context) {
	session, err := c.store.GetSession(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			c.logger.WarnContext(ctx, "failed to read session", slog.Any("error", err))
		}
		return
	}
	if err := c.client.SetCookies(session.Cookies); err != nil {
		c.logger.WarnContext(ctx, "failed to restore cookies", slog.Any("error", err))
	}
}

func (c *Cli) persistCookies(ctx context.Context) {
	if err := c.store.SaveCookies(ctx, c.client.Cookies()); err != nil {
		c.logger.WarnContext(ctx, "failed to save cookies", slog.Any("error", err))
	}
}

// PrintUsage prints help for the client commands
func PrintUsage(io iocli.IO) {
	io.Println("LearnHub Client")
	io.Println()
	io.Println("Usage:")
	io.Println("  learnhub [OPTIONS] COMMAND")
	io.Println()
	io.Println("Options:")
	io.Println("  --version                    Show version information")
	io.Println("  --server URL                 Server URL (default: http://localhost:4001)")
	io.Println("  --db PATH                    Path to local session database (default: learnhub-client.db)")
	io.Println()
	io.Println("Commands:")
	io.Println("  register                Register new user")
	io.Println("  login [email]           Login to server")
	io.Println("  logout                  Logout from server")
	io.Println("  status                  Show local session status")
	io.Println("  whoami                  Show current user from server")
	io.Println("  get <path>              GET an authenticated endpoint")
	io.Println()
	io.Println("Examples:")
	io.Println("  learnhub register")
	io.Println("  learnhub login alice@example.com")
	io.Println("  learnhub get /users/me")
	io.Println("  learnhub --server https://example.com login")
}
