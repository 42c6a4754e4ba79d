// Command ws_bridge is a browser console for the patch: every WebSocket
// text frame is sent as a command, and inbound messages are pushed back as
// JSON frames.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m4xw311/bachmcp/bridge"
	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/logging"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "ws_bridge",
		Usage: "Relay a WebSocket console to the patch",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Extra configuration file"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)

	b := bridge.New(cfg, bridge.WithLogger(log))
	if err := b.Start(); err != nil {
		return err
	}
	defer b.Stop()

	mux := http.NewServeMux()
	mux.Handle("/ws", newHandler(b, cfg.IdleInterval, log))
	srv := &http.Server{Addr: c.String("addr"), Handler: mux}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error {
		log.Info("websocket console running", "url", "ws://"+srv.Addr+"/ws")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
