package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m4xw311/bachmcp/message"
	"golang.org/x/sync/errgroup"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// relay is the part of the bridge the console uses.
type relay interface {
	SendCommand(text string) bool
	PopNext(kind message.Kind) (message.Message, bool)
}

// frame is what the browser receives: an inbound message, or a status
// report about a command it sent.
type frame struct {
	Type       string    `json:"type"`
	Data       string    `json:"data"`
	Raw        string    `json:"raw,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitzero"`
}

func newHandler(r relay, interval time.Duration, log *slog.Logger) http.Handler {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		log.Info("console connected", "remote", req.RemoteAddr)

		out := make(chan frame, 16)
		g, ctx := errgroup.WithContext(req.Context())

		// Browser -> patch.
		g.Go(func() error {
			defer close(out)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return err
				}
				cmd := strings.TrimSpace(string(data))
				if cmd == "" {
					continue
				}
				status := frame{Type: "sent", Data: cmd}
				if !r.SendCommand(cmd) {
					status.Type = "error"
					status.Data = "could not send: " + cmd
				}
				select {
				case out <- status:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})

		// Patch -> browser. The single writer goroutine owns the connection's
		// write side.
		g.Go(func() error {
			// Closing unblocks the reader when the write side fails first.
			defer conn.Close()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case f, ok := <-out:
					if !ok {
						return nil
					}
					if err := conn.WriteJSON(f); err != nil {
						return err
					}
				case <-ticker.C:
					if err := drain(ctx, r, conn); err != nil {
						return err
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})

		if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Debug("console session ended", "error", err)
		}
		log.Info("console disconnected", "remote", req.RemoteAddr)
	})
}

func drain(ctx context.Context, r relay, conn *websocket.Conn) error {
	for ctx.Err() == nil {
		msg, ok := r.PopNext(message.KindAny)
		if !ok {
			return nil
		}
		f := frame{Type: string(msg.Kind), Data: msg.Payload, Raw: msg.Raw, ReceivedAt: msg.ReceivedAt}
		if err := conn.WriteJSON(f); err != nil {
			return err
		}
	}
	return ctx.Err()
}
