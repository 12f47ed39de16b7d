// Package links opens URLs requested by the webview in the user's browser.
package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"
)

// ErrUnsupportedScheme is returned for URLs that are not http, https or mailto.
var ErrUnsupportedScheme = errors.New("unsupported link scheme")

// Launcher starts an external program. It matches exec.CommandContext's
// Start semantics so tests can substitute it.
type Launcher func(ctx context.Context, name string, args ...string) error

// ExecLauncher starts name with args and does not wait for it to exit.
func ExecLauncher(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Start()
}

// Opener validates and opens links.
type Opener struct {
	command string
	launch  Launcher
	logger  *slog.Logger
}

// DefaultCommand returns the platform's URL-opening command.
func DefaultCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// NewOpener creates an Opener. An empty command selects DefaultCommand.
func NewOpener(command string, launch Launcher, logger *slog.Logger) *Opener {
	if command == "" {
		command = DefaultCommand()
	}
	if launch == nil {
		launch = ExecLauncher
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{command: command, launch: launch, logger: logger}
}

// Open parses link and hands it to the launcher.
func (o *Opener) Open(ctx context.Context, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("parse link: %w", err)
	}

	switch u.Scheme {
	case "http", "https", "mailto":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if err := o.launch(ctx, o.command, u.String()); err != nil {
		return fmt.Errorf("launch %s: %w", o.command, err)
	}

	o.logger.Debug("opened link", "url", u.Redacted())
	return nil
}
