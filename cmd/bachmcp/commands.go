package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/m4xw311/bachmcp/bridge"
	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/logging"
	"github.com/m4xw311/bachmcp/message"
	"github.com/m4xw311/bachmcp/metrics"
	"github.com/m4xw311/bachmcp/tools"
	"github.com/m4xw311/bachmcp/tools/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// setup loads configuration and builds the logger shared by every command.
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	log := logging.New(cfg.Log)
	slog.SetDefault(log)
	return cfg, log, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the bridge and serve the tools over MCP on stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "toolset", Aliases: []string{"t"}, Usage: "Toolset to expose", Value: "default"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}

			var (
				reg *prometheus.Registry
				m   *metrics.Metrics
			)
			if cfg.MetricsAddr != "" {
				reg = prometheus.NewRegistry()
				if m, err = metrics.New(reg); err != nil {
					return err
				}
			}

			b := bridge.New(cfg, bridge.WithLogger(log), bridge.WithMetrics(m))
			if err := b.Start(); err != nil {
				return err
			}
			defer b.Stop()

			registry := tools.NewToolRegistry(cfg, b, tools.WithLogger(log))
			ts, err := cfg.GetToolset(c.String("toolset"))
			if err != nil {
				return err
			}
			active, err := registry.GetActiveTools(ts)
			if err != nil {
				return err
			}
			server := mcp.NewServer(version, active, log, mcp.WithSkillFile(cfg.SkillFile))

			ctx, stop := signalContext(c)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error { return b.Run(gctx) })
			g.Go(func() error {
				// The client closing stdin ends the session and the process.
				defer cancel()
				err := server.Run(gctx)
				if err != nil && gctx.Err() == nil {
					return errors.Wrapf(err, "mcp server stopped")
				}
				return nil
			})
			if reg != nil {
				srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg)}
				g.Go(func() error {
					log.Info("serving metrics", "addr", cfg.MetricsAddr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return errors.Wrapf(err, "metrics server failed")
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
					defer done()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err = g.Wait()
			log.Info("shutting down")
			return err
		},
	}
}

func listenCmd() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Run the bridge and print every inbound message as a JSON line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "Only print structured or plain messages"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			kind, ok := message.ParseKind(c.String("kind"))
			if !ok {
				return cli.Exit("unknown --kind "+c.String("kind"), 2)
			}
			b := bridge.New(cfg, bridge.WithLogger(log))
			if err := b.Start(); err != nil {
				return err
			}
			defer b.Stop()

			ctx, stop := signalContext(c)
			defer stop()
			enc := json.NewEncoder(c.App.Writer)
			for ctx.Err() == nil {
				msg, ok := b.WaitForIncoming(ctx, time.Second, kind)
				if !ok {
					continue
				}
				if err := enc.Encode(msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func sendCmd() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send one command to the patch without waiting for a reply",
		ArgsUsage: "<command...>",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return cli.Exit("nothing to send", 2)
			}
			b := bridge.New(cfg, bridge.WithLogger(log))
			defer b.Stop()
			if !b.SendCommand(text) {
				return cli.Exit("could not reach the patch at "+cfg.Outgoing.Addr(), 1)
			}
			return nil
		},
	}
}

func queryCmd() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Send one command and print the first reply",
		ArgsUsage: "<command...>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the reply (default query_timeout)"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return cli.Exit("nothing to send", 2)
			}
			timeout := c.Duration("timeout")
			if timeout <= 0 {
				timeout = cfg.QueryTimeout
			}
			b := bridge.New(cfg, bridge.WithLogger(log))
			if err := b.Start(); err != nil {
				return err
			}
			defer b.Stop()

			ctx, stop := signalContext(c)
			defer stop()
			b.FlushBeforeQuery()
			msg, ok := b.SendAndWait(ctx, text, timeout, message.KindAny)
			if !ok {
				return cli.Exit("no reply within "+timeout.String(), 1)
			}
			_, err = c.App.Writer.Write([]byte(msg.Payload + "\n"))
			return err
		},
	}
}

func callCmd() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Start \"serve\" as a subprocess and call one tool through MCP",
		ArgsUsage: "<tool> [key=value...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "list", Usage: "List the server's tools instead of calling one"},
			&cli.StringFlag{Name: "resource", Usage: "Print a resource, e.g. " + mcp.SkillURI + ", instead of calling a tool"},
		},
		Action: func(c *cli.Context) error {
			_, log, err := setup(c)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return errors.Wrapf(err, "could not locate own executable")
			}
			serveArgs := []string{}
			if cfgPath := c.String("config"); cfgPath != "" {
				serveArgs = append(serveArgs, "--config", cfgPath)
			}
			serveArgs = append(serveArgs, "serve")

			ctx, stop := signalContext(c)
			defer stop()
			client, err := mcp.NewCommandClient(ctx, appName, exe, serveArgs, log)
			if err != nil {
				return err
			}
			defer client.Close()

			if c.Bool("list") {
				for _, name := range client.ToolNames() {
					if _, err := c.App.Writer.Write([]byte(name + "\n")); err != nil {
						return err
					}
				}
				return nil
			}

			if uri := c.String("resource"); uri != "" {
				text, err := client.ReadResource(ctx, uri)
				if err != nil {
					return err
				}
				_, err = c.App.Writer.Write([]byte(text + "\n"))
				return err
			}

			if c.NArg() == 0 {
				return cli.Exit("missing tool name", 2)
			}
			tool, ok := client.GetTool(c.Args().First())
			if !ok {
				return errors.Wrapf(errors.ErrToolNotFound, "%s", c.Args().First())
			}
			args, err := parseToolArgs(c.Args().Tail())
			if err != nil {
				return err
			}
			out, err := tool.Execute(ctx, args)
			if err != nil {
				return err
			}
			_, err = c.App.Writer.Write([]byte(out + "\n"))
			return err
		},
	}
}

// parseToolArgs turns key=value pairs into tool arguments. Values that are
// JSON numbers or booleans keep their type; everything else is a string.
func parseToolArgs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New("argument %q is not key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			switch decoded.(type) {
			case float64, bool:
				out[key] = decoded
				continue
			}
		}
		out[key] = value
	}
	return out, nil
}
