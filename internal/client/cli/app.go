package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/rtcauth/internal/client"
	"github.com/dmitrijs2005/rtcauth/internal/client/config"
)

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage error")

// ClientFactory opens a client for the given endpoint.
type ClientFactory func(endpoint string) (client.Client, error)

func dialGRPC(endpoint string) (client.Client, error) {
	c, err := client.NewGRPCClient(endpoint)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type command struct {
	summary string
	run     func(ctx context.Context, a *App, args []string) error
	offline bool
}

var commands = map[string]command{
	"request-code": {"send a login code to a phone", cmdRequestCode, false},
	"login":        {"log in with a phone number and SMS code", cmdLogin, false},
	"token":        {"get an RTC capability token for a room", cmdToken, false},
	"rename":       {"change the display name", cmdRename, false},
	"profile":      {"show the logged-in user", cmdProfile, false},
	"refresh":      {"extend the current session", cmdRefresh, false},
	"logout":       {"end the current session", cmdLogout, false},
	"upload":       {"upload a file through a presigned URL", cmdUpload, false},
	"ping":         {"check that the server is serving", cmdPing, false},
	"verify":       {"check a capability token offline with the app key", cmdVerify, true},
}

type App struct {
	config    *config.Config
	newClient ClientFactory
	client    client.Client
	reader    *bufio.Reader
	out       io.Writer
}

func NewApp(c *config.Config, in io.Reader, out io.Writer) *App {
	return &App{config: c, newClient: dialGRPC, reader: bufio.NewReader(in), out: out}
}

// Run parses global flags, then dispatches the first positional argument.
func (a *App) Run(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("rtcauth-cli", pflag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.SetInterspersed(false)
	a.config.AddFlags(fs)
	fs.Usage = func() { a.usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		a.usage(fs)
		return ErrUsage
	}

	if cmd, ok := commands[rest[0]]; ok && cmd.offline {
		return cmd.run(ctx, a, rest[1:])
	}

	if err := a.connect(); err != nil {
		return err
	}
	defer a.close()

	if rest[0] == "shell" {
		return a.Shell(ctx)
	}
	return a.dispatch(ctx, rest[0], rest[1:])
}

func (a *App) dispatch(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return cmd.run(ctx, a, args)
}

func (a *App) connect() error {
	c, err := a.newClient(a.config.ServerEndpointAddr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	token, err := loadSession(a.config.SessionFile)
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("read session: %w", err)
	}
	c.SetSessionToken(token)
	a.client = c
	return nil
}

// close persists whatever session the client ends up holding.
func (a *App) close() {
	if err := saveSession(a.config.SessionFile, a.client.SessionToken()); err != nil {
		fmt.Fprintln(a.out, "warning: could not save session:", err)
	}
	_ = a.client.Close()
}

func (a *App) usage(fs *pflag.FlagSet) {
	fmt.Fprintln(a.out, "Usage: rtcauth-cli [flags] <command> [command flags]")
	fmt.Fprintln(a.out, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-13s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(a.out, "  %-13s %s\n", "shell", "run commands interactively")
	fmt.Fprintln(a.out, "\nFlags:")
	fmt.Fprint(a.out, fs.FlagUsages())
}
