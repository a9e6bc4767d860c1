// Command secondhand is a terminal client for the marketplace API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"secondhand/internal/client/api"
	"secondhand/internal/client/auth"
	"secondhand/internal/client/guard"
	"secondhand/internal/client/nav"
	"secondhand/internal/client/orders"
	"secondhand/internal/client/session"
	"secondhand/internal/config"
	applog "secondhand/internal/log"
)

// notifier prints user messages to stderr.
type notifier struct{ w io.Writer }

func (n notifier) Error(msg string)   { fmt.Fprintln(n.w, "error:", msg) }
func (n notifier) Success(msg string) { fmt.Fprintln(n.w, msg) }

type app struct {
	client *api.Client
	store  session.Store
	nav    *nav.Navigator
	auth   *auth.Controller
	orders *orders.Lifecycle
	stdout io.Writer
	stderr io.Writer
}

type command func(ctx context.Context, a *app, args []string) int

var commands = map[string]command{
	"login":      cmdLogin,
	"register":   cmdRegister,
	"logout":     cmdLogout,
	"whoami":     cmdWhoami,
	"passwd":     cmdPasswd,
	"categories": cmdCategories,
	"products":   cmdProducts,
	"upload":     cmdUpload,
	"orders":     cmdOrders,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: secondhand [-config file] <command> [flags] [args]")
	fmt.Fprintln(w, "commands:")
	for _, n := range names {
		fmt.Fprintln(w, "  "+n)
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("secondhand", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "config file (default "+config.DefaultClientFile()+")")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.LoadClient(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	// log entries are for debugging only; user messages go through the notifier
	applog.SetOutput(io.Discard)
	if cfg.Debug {
		applog.SetOutput(stderr)
		applog.SetDebug(true)
	}

	store, err := session.OpenSQLStore(cfg.StatePath)
	if err != nil {
		fmt.Fprintln(stderr, "state:", err)
		return 1
	}
	defer store.Close()

	client, err := api.New(api.Config{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}, store, api.WithNotifier(notifier{w: stderr}))
	if err != nil {
		fmt.Fprintln(stderr, "client:", err)
		return 1
	}
	n := nav.New(guard.New(store), client)
	defer n.Close()

	a := &app{
		client: client,
		store:  store,
		nav:    n,
		auth:   auth.NewController(client, store, n),
		orders: orders.NewLifecycle(client),
		stdout: stdout,
		stderr: stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd(ctx, a, rest[1:])
}

// enter navigates to dest and reports whether the guard let us in.
func (a *app) enter(dest string) bool {
	d := a.nav.Go(dest)
	if d.Allowed {
		return true
	}
	fmt.Fprintf(a.stderr, "login required: run `secondhand login`, then retry (%s)\n", d.Redirect)
	return false
}

// fail reports err unless the client already told the user about it.
func (a *app) fail(err error) int {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		fmt.Fprintln(a.stderr, "error:", err)
	}
	if errors.Is(err, api.ErrSessionRevoked) {
		fmt.Fprintf(a.stderr, "signed out (%s)\n", a.nav.Location())
	}
	return 1
}

func (a *app) print(v any) int {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return a.fail(err)
	}
	return 0
}

func newFlags(name string, a *app) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}
