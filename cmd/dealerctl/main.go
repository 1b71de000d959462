// Command dealerctl is a terminal front end for the dealer admin API. Every
// command resolves the session and consults the same access rules the
// dashboard uses before acting.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/client"
	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/internal/observability"
)

const (
	exitOK          = 0
	exitError       = 1
	exitNotSignedIn = 2
	exitForbidden   = 3
)

const (
	defaultServer     = "http://localhost:8080"
	resolveTimeout    = 15 * time.Second
	dealershipTimeout = 3 * time.Second
)

type commandFn func(ctx context.Context, s *session, args []string) int

type command struct {
	name        string
	usage       string
	description string
	run         commandFn
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			usage:       "login --email <email> [--password <password>]",
			description: "Sign in and remember the session",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			usage:       "logout",
			description: "Sign out and forget the session",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			usage:       "whoami",
			description: "Show the signed-in user, role and dealership",
			run:         runWhoami,
		},
		"vehicles": {
			name:        "vehicles",
			usage:       "vehicles [--status <status>] | vehicles delete <id>",
			description: "List inventory, or delete a vehicle",
			run:         runVehicles,
		},
	}
}

// cli holds the process environment so tests can substitute it.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	tokens client.TokenStore
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv}
	code := c.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (c *cli) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("dealerctl", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	server := fs.String("server", envOr(c.getenv, "DEALER_ADMIN_URL", defaultServer), "dealer admin base URL")
	sessionFile := fs.String("session-file", c.getenv("DEALERCTL_SESSION_FILE"), "where the session is kept (default: user config dir)")
	verbose := fs.Bool("verbose", false, "log debug output to stderr")
	fs.Usage = func() { c.usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}
	if fs.NArg() == 0 {
		c.usage(fs)
		return exitError
	}

	cmd, ok := commands()[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(c.stderr, "unknown command %q\n\n", fs.Arg(0))
		c.usage(fs)
		return exitError
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(level, "console")
	if err != nil {
		fmt.Fprintf(c.stderr, "dealerctl: %v\n", err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	tokens := c.tokens
	if tokens == nil {
		path := *sessionFile
		if path == "" {
			if path, err = client.DefaultTokenPath(); err != nil {
				fmt.Fprintf(c.stderr, "dealerctl: %v\n", err)
				return exitError
			}
		}
		tokens = client.NewFileTokenStore(path)
	}

	s := newSession(ctx, client.New(*server, tokens, client.WithLogger(logger)), logger, c)
	defer s.close()

	return cmd.run(ctx, s, fs.Args()[1:])
}

func (c *cli) usage(fs *flag.FlagSet) {
	fmt.Fprintln(c.stderr, "usage: dealerctl [flags] <command> [args]")
	fmt.Fprintln(c.stderr, "\ncommands:")
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(c.stderr, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", cmds[name].usage, cmds[name].description)
	}
	_ = w.Flush()
	fmt.Fprintln(c.stderr, "\nflags:")
	fs.PrintDefaults()
}

// session bundles the API client with the SessionContext and AccessGate built on it.
type session struct {
	*cli
	api    *client.Client
	ctx    *auth.SessionContext
	gate   *auth.AccessGate
	logger *zap.Logger
}

func newSession(ctx context.Context, api *client.Client, logger *zap.Logger, c *cli) *session {
	sc := auth.NewSessionContext(api, api.Profiles(), api.Dealerships(), logger)
	sc.Start(ctx)
	return &session{cli: c, api: api, ctx: sc, gate: auth.NewAccessGate(sc), logger: logger}
}

func (s *session) close() {
	s.ctx.Close()
}

// resolve waits for the session to leave Initializing.
func (s *session) resolve(ctx context.Context) (auth.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	return s.ctx.Await(ctx)
}

// waitFor blocks until the snapshot satisfies ok or timeout passes.
func (s *session) waitFor(ctx context.Context, timeout time.Duration, ok func(auth.Snapshot) bool) (auth.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	changed := make(chan struct{}, 1)
	unsubscribe := s.ctx.Subscribe(func(auth.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		if snap := s.ctx.Snapshot(); ok(snap) {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return s.ctx.Snapshot(), ctx.Err()
		}
	}
}

// authorize resolves the session and applies the gate for required. It
// returns exitOK when the command may proceed.
func (s *session) authorize(ctx context.Context, required auth.Role) int {
	if _, err := s.resolve(ctx); err != nil {
		fmt.Fprintf(s.stderr, "could not resolve session: %v\n", err)
		return exitError
	}
	switch s.gate.RequireAccess(required) {
	case auth.DecisionAllow:
		return exitOK
	case auth.DecisionRedirect:
		fmt.Fprintln(s.stderr, "not signed in: run `dealerctl login`")
		return exitNotSignedIn
	case auth.DecisionForbidden:
		fmt.Fprintf(s.stderr, "not permitted: requires the %s role or above\n", required.Label())
		return exitForbidden
	default:
		fmt.Fprintln(s.stderr, "session is still resolving, try again")
		return exitError
	}
}

// apiFailure reports err and maps the API status to an exit code.
func (s *session) apiFailure(action string, err error) int {
	switch client.StatusCode(err) {
	case http.StatusUnauthorized:
		fmt.Fprintln(s.stderr, "not signed in: run `dealerctl login`")
		return exitNotSignedIn
	case http.StatusForbidden:
		fmt.Fprintln(s.stderr, "not permitted")
		return exitForbidden
	default:
		fmt.Fprintf(s.stderr, "%s: %v\n", action, err)
		return exitError
	}
}

func runLogin(ctx context.Context, s *session, args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(s.stderr)
	email := fs.String("email", s.getenv("DEALERCTL_EMAIL"), "account email")
	password := fs.String("password", "", "account password (default: DEALERCTL_PASSWORD or stdin)")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if *email == "" {
		fmt.Fprintln(s.stderr, "login: --email is required")
		return exitError
	}
	if *password == "" {
		*password = s.getenv("DEALERCTL_PASSWORD")
	}
	if *password == "" {
		fmt.Fprint(s.stderr, "password: ")
		line, err := bufio.NewReader(s.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(s.stderr, "login: read password: %v\n", err)
			return exitError
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	if _, err := s.resolve(ctx); err != nil {
		fmt.Fprintf(s.stderr, "could not resolve session: %v\n", err)
		return exitError
	}

	if err := s.ctx.SignIn(ctx, *email, *password); err != nil {
		if auth.IsCredentialError(err) {
			fmt.Fprintln(s.stderr, "login failed: invalid email or password")
			return exitNotSignedIn
		}
		fmt.Fprintf(s.stderr, "login failed: %v\n", err)
		return exitError
	}

	snap, err := s.waitFor(ctx, resolveTimeout, func(snap auth.Snapshot) bool {
		id, ok := snap.Identity()
		return ok && strings.EqualFold(id.Email, strings.TrimSpace(*email))
	})
	if err != nil {
		fmt.Fprintln(s.stderr, "signed in, but the profile could not be loaded")
		return exitNotSignedIn
	}
	id, _ := snap.Identity()
	fmt.Fprintf(s.stdout, "Signed in as %s (%s)\n", displayName(id), id.Role.Label())
	return exitOK
}

func runLogout(ctx context.Context, s *session, _ []string) int {
	if _, err := s.resolve(ctx); err != nil {
		s.logger.Debug("session did not resolve before sign out", zap.Error(err))
	}
	if err := s.ctx.SignOut(ctx); err != nil {
		// The local session is already gone.
		s.logger.Warn("server sign out failed", zap.Error(err))
	}
	fmt.Fprintln(s.stdout, "Signed out")
	return exitOK
}

func runWhoami(ctx context.Context, s *session, _ []string) int {
	snap, err := s.resolve(ctx)
	if err != nil {
		fmt.Fprintf(s.stderr, "could not resolve session: %v\n", err)
		return exitError
	}
	id, ok := snap.Identity()
	if !ok {
		fmt.Fprintln(s.stderr, "not signed in: run `dealerctl login`")
		return exitNotSignedIn
	}

	// The dealership arrives after the identity.
	if id.DealershipID != "" {
		if next, err := s.waitFor(ctx, dealershipTimeout, func(snap auth.Snapshot) bool {
			_, ok := snap.Dealership()
			return ok
		}); err == nil {
			snap = next
		}
	}

	w := tabwriter.NewWriter(s.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", displayName(id))
	fmt.Fprintf(w, "Initials:\t%s\n", id.Initials())
	fmt.Fprintf(w, "Email:\t%s\n", id.Email)
	fmt.Fprintf(w, "Role:\t%s\n", id.Role.Label())
	if d, ok := snap.Dealership(); ok {
		fmt.Fprintf(w, "Dealership:\t%s\n", d.Name)
	} else {
		fmt.Fprintf(w, "Dealership:\t%s\n", "-")
	}
	_ = w.Flush()
	return exitOK
}

func runVehicles(ctx context.Context, s *session, args []string) int {
	if len(args) > 0 && args[0] == "delete" {
		return runVehicleDelete(ctx, s, args[1:])
	}

	fs := flag.NewFlagSet("vehicles", flag.ContinueOnError)
	fs.SetOutput(s.stderr)
	status := fs.String("status", "", "only vehicles with this status")
	sortBy := fs.String("sort", "", "sort column")
	asc := fs.Bool("asc", false, "sort ascending")
	page := fs.Int("page", 0, "zero based page")
	query := fs.String("q", "", "search text")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if code := s.authorize(ctx, auth.RoleViewer); code != exitOK {
		return code
	}

	result, err := s.api.ListVehicles(ctx, client.VehicleFilter{
		Status: *status,
		Sort:   *sortBy,
		Asc:    *asc,
		Page:   *page,
		Query:  *query,
	})
	if err != nil {
		return s.apiFailure("list vehicles", err)
	}

	w := tabwriter.NewWriter(s.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTOCK\tVEHICLE\tSTATUS\tPRICE")
	for _, v := range result.Vehicles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", v.ID, v.StockNumber, v.Title(), v.Status.Label(), v.AskingPrice)
	}
	_ = w.Flush()
	fmt.Fprintf(s.stdout, "page %d of %d, %d vehicles\n", result.Page+1, max(result.TotalPages, 1), result.Total)
	return exitOK
}

func runVehicleDelete(ctx context.Context, s *session, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(s.stderr, "usage: dealerctl vehicles delete <id>")
		return exitError
	}

	if code := s.authorize(ctx, auth.RoleManager); code != exitOK {
		return code
	}

	if err := s.api.DeleteVehicle(ctx, args[0]); err != nil {
		return s.apiFailure("delete vehicle", err)
	}
	fmt.Fprintf(s.stdout, "Deleted vehicle %s\n", args[0])
	return exitOK
}

func displayName(id auth.Identity) string {
	name := strings.TrimSpace(id.FirstName + " " + id.LastName)
	if name == "" {
		return id.Email
	}
	return name
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
