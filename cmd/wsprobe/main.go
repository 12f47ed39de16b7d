// wsprobe plays the chat webview against a running dispatcher. It connects,
// announces ui-is-ready, sends one JSON frame per line of stdin and prints
// everything the dispatcher sends back.
//
// Usage:
//
//	echo '{"command":"auth-follow-up-was-clicked","tabType":"featuredev","tabID":"t1","authType":"full-auth"}' |
//	    go run ./cmd/wsprobe --url ws://127.0.0.1:7420/ws
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/qchat-dispatch/internal/connection"
	"github.com/rickgao/qchat-dispatch/internal/router"
)

func main() {
	url := flag.String("url", "ws://127.0.0.1:7420/ws", "dispatcher WebSocket URL")
	origin := flag.String("origin", "", "Origin header to present")
	ready := flag.Bool("ready", true, "send ui-is-ready after connecting")
	verbose := flag.Bool("verbose", false, "pretty-print received JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe := connection.NewProbe(connection.ProbeConfig{
		URL:    *url,
		Origin: *origin,
	}, logger)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := probe.Connect(dialCtx)
	cancel()
	if err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer probe.Close()

	if *ready {
		frame, _ := json.Marshal(map[string]string{"command": router.CommandUIReady})
		if err := probe.Send(frame); err != nil {
			logger.Error("failed to send ui-is-ready", "error", err)
			os.Exit(1)
		}
	}

	go printReplies(ctx, probe, *verbose)
	go sendLines(ctx, probe, logger)

	logger.Info("probe connected - press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-probe.Errors():
		logger.Warn("connection lost", "error", err)
	}
	logger.Info("probe stopped")
}

// sendLines sends each non-empty stdin line as one frame. Lines that are not
// valid JSON are skipped.
func sendLines(ctx context.Context, probe *connection.Probe, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			logger.Warn("skipping invalid JSON line", "line", line)
			continue
		}
		if err := probe.Send([]byte(line)); err != nil {
			logger.Error("send failed", "error", err)
			return
		}
	}
}

func printReplies(ctx context.Context, probe *connection.Probe, verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-probe.Messages():
			if !verbose {
				fmt.Printf("[%s] %s\n", msg.ReceivedAt.Format(time.TimeOnly), msg.Data)
				continue
			}
			var v any
			if err := json.Unmarshal(msg.Data, &v); err != nil {
				fmt.Printf("[%s] %s\n", msg.ReceivedAt.Format(time.TimeOnly), msg.Data)
				continue
			}
			data, _ := json.MarshalIndent(v, "", "  ")
			fmt.Printf("[%s]\n%s\n", msg.ReceivedAt.Format(time.TimeOnly), data)
		}
	}
}
