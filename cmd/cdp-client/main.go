// cdp-client talks to a remote debugging peer from the command line: it
// lists targets, sends single commands, streams events, and bridges
// line-delimited JSON on stdin/stdout to a live connection.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/FreePeak/golang-cdp-client/internal/builder"
	"github.com/FreePeak/golang-cdp-client/internal/config"
	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/interfaces/stdio"
	"github.com/FreePeak/golang-cdp-client/internal/usecases"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath     string
	host           string
	port           int
	target         string
	url            string
	title          string
	suppressOrigin bool
	timeout        time.Duration
	logLevel       string
	watch          []string
	metricsAddr    string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var flags globalFlags

	flagSet := pflag.NewFlagSet("cdp-client", pflag.ContinueOnError)
	flagSet.StringVar(&flags.configPath, "config", "", "path to a YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&flags.host, "host", "", "debugging peer host (default localhost)")
	flagSet.IntVar(&flags.port, "port", 0, "debugging peer port (default 9222)")
	flagSet.StringVar(&flags.target, "target", "", "connect to the session with this id")
	flagSet.StringVar(&flags.url, "url", "", "connect to the first session whose URL contains this text")
	flagSet.StringVar(&flags.title, "title", "", "connect to the first session whose title contains this text")
	flagSet.BoolVar(&flags.suppressOrigin, "suppress-origin", false, "omit the Origin header from the socket handshake")
	flagSet.DurationVar(&flags.timeout, "timeout", 0, "command timeout (default from config, 30s)")
	flagSet.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringSliceVar(&flags.watch, "watch", nil, "events to forward in repl mode (\"*\" for all)")
	flagSet.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("missing command")
	}

	cfg, err := loadConfig(flagSet, &flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	b := builder.FromConfig(cfg).WithLogger(logger)
	if flags.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		b.WithRegisterer(reg)
		shutdown := serveMetrics(flags.metricsAddr, reg, logger)
		defer shutdown()
	}

	cmd := &command{flags: flags, builder: b, logger: logger, stdin: stdin, stdout: stdout}
	switch rest[0] {
	case "targets":
		return cmd.targets(ctx)
	case "version":
		return cmd.version(ctx)
	case "send":
		return cmd.send(ctx, rest[1:])
	case "watch":
		return cmd.watchEvents(ctx, rest[1:])
	case "repl":
		return cmd.repl(ctx)
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

// loadConfig reads the config file and applies explicitly set flags over it.
func loadConfig(flagSet *pflag.FlagSet, flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("host") {
		cfg.Host = flags.host
	}
	if flagSet.Changed("port") {
		cfg.Port = flags.port
	}
	if flagSet.Changed("suppress-origin") {
		cfg.SuppressOrigin = flags.suppressOrigin
	}
	if flagSet.Changed("timeout") {
		cfg.CommandTimeout = flags.timeout
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, cfg.Validate()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.Fields{"addr": addr, "error": err})
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type command struct {
	flags   globalFlags
	builder *builder.ClientBuilder
	logger  *logging.Logger
	stdin   io.Reader
	stdout  io.Writer
}

func (c *command) targets(ctx context.Context) error {
	sessions, err := c.builder.BuildResolver().ListSessions(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTITLE\tURL\tATTACHABLE")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", s.ID, s.Type, s.Title, s.URL, s.Connectable())
	}
	return w.Flush()
}

func (c *command) version(ctx context.Context) error {
	version, err := c.builder.BuildResolver().Version(ctx)
	if err != nil {
		return err
	}
	return writeJSON(c.stdout, version)
}

func (c *command) connect(ctx context.Context) (*usecases.Client, error) {
	client, err := c.builder.BuildClient()
	if err != nil {
		return nil, err
	}
	selector := domain.Selector{ID: c.flags.target, URL: c.flags.url, Title: c.flags.title}
	if err := client.Connect(ctx, selector); err != nil {
		return nil, err
	}
	c.logger.Info("attached", logging.Fields{"session": client.Session().ID, "title": client.Session().Title})
	return client, nil
}

func (c *command) disconnect(client *usecases.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		c.logger.Warn("disconnect did not complete", logging.Fields{"error": err})
	}
}

func (c *command) send(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: send <Domain.method> [json-params]")
	}
	var params any
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("params are not valid JSON: %s", args[1])
		}
		params = json.RawMessage(args[1])
	}

	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer c.disconnect(client)

	result, err := client.SendCommand(ctx, args[0], params)
	if err != nil {
		return err
	}
	return writeJSON(c.stdout, result)
}

func (c *command) watchEvents(ctx context.Context, domains []string) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer c.disconnect(client)

	client.AddEventHandler(usecases.AllEvents, func(ctx context.Context, event shared.Event) error {
		return json.NewEncoder(c.stdout).Encode(stdio.EventLine{Event: event.Method, Params: event.Params})
	})
	for _, name := range domains {
		if err := client.EnableDomain(ctx, name); err != nil {
			return fmt.Errorf("enabling %s: %w", name, err)
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case <-client.Done():
		return client.Err()
	}
}

func (c *command) repl(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer c.disconnect(client)

	bridge := stdio.NewBridge(client,
		stdio.WithWatch(c.flags.watch...),
		stdio.WithLogger(c.logger.Named("bridge")),
	)
	err = bridge.Listen(ctx, c.stdin, c.stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `cdp-client talks to a remote debugging peer.

Usage:
  cdp-client [flags] <command> [args]

Commands:
  targets                       list the sessions the peer offers
  version                       print the peer's version report
  send <method> [json-params]   send one command and print its result
  watch <Domain>...             enable domains and print events until interrupted
  repl                          bridge JSON lines on stdin/stdout to the session

Examples:
  cdp-client targets
  cdp-client --title Example send Page.navigate '{"url": "https://example.com"}'
  cdp-client --port 9333 watch Page Network
  cdp-client --watch Page.loadEventFired repl

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
