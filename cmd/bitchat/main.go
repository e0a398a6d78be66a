// Bitchat: CLI entry point.
//
// This tool speaks the bitchat compact binary packet format. It can run a
// relay hub that emulates a shared broadcast medium, join such a hub as a
// peer, or connect two peers directly over a WebRTC DataChannel after a
// WebSocket signaling phase.
//
// It can be launched interactively (no -role) or non-interactively via CLI
// flags and an optional TOML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/bitchat/internal/chat"
	"github.com/1ureka/bitchat/internal/config"
	"github.com/1ureka/bitchat/internal/relay"
	"github.com/1ureka/bitchat/internal/signaling"
	"github.com/1ureka/bitchat/internal/transport"
	"github.com/1ureka/bitchat/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		util.LogError("%v", err)
		os.Exit(2)
	}

	if flags.debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Bitchat — v%s", version))
	pterm.Println()

	cfg, err := loadConfig(flags)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if cfg.Role == "" {
		runInteractive(&cfg)
	}

	if cfg.WSURL != "" {
		if cfg.WSURL, err = normalizeWSURL(cfg.WSURL); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("invalid configuration:\n%v", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("bye")
}

// loadConfig layers defaults, the optional config file and explicit flags.
func loadConfig(flags *cliFlags) (config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		var err error
		if cfg, err = config.Load(flags.configPath, cfg); err != nil {
			return config.Config{}, err
		}
	}
	if err := flags.apply(&cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

func run(ctx context.Context, cfg config.Config) error {
	if cfg.StatsInterval > 0 {
		util.StartStatsReporter(ctx, cfg.StatsInterval)
	}

	if cfg.Role == config.RoleRelay {
		return relay.Serve(ctx, cfg.ListenAddr, relay.NewHub())
	}

	link, err := openLink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to establish link: %w", err)
	}
	defer link.Close()

	id, err := cfg.Identity()
	if err != nil {
		return err
	}

	var seen *chat.Dedup
	if cfg.DedupWindow > 0 {
		if seen, err = chat.NewDedup(ctx, cfg.DedupWindow); err != nil {
			return err
		}
		defer seen.Close()
	}

	session := chat.NewSession(link, id, cfg.Name, seen)
	util.LogSuccess("link ready, sender id %s", id)

	if cfg.Listen {
		return listen(ctx, session, cfg)
	}
	return send(ctx, session, cfg)
}

// openLink connects according to the role.
func openLink(ctx context.Context, cfg config.Config) (chat.Link, error) {
	switch cfg.Role {
	case config.RolePeer:
		return transport.DialRelay(ctx, cfg.RelayURL)
	case config.RoleHost:
		return signaling.EstablishAsHost(ctx, hostAddr(cfg))
	case config.RoleClient:
		return signaling.EstablishAsClient(ctx, cfg.WSURL)
	default:
		return nil, fmt.Errorf("role %q has no link", cfg.Role)
	}
}

func send(ctx context.Context, s *chat.Session, cfg config.Config) error {
	err := s.SendBurst(ctx, burst(cfg))
	if err != nil {
		return err
	}
	util.LogSuccess("sent %d message(s) as %s", cfg.Count, cfg.Name)
	return nil
}

// listen prints events until ctx ends, the link drops or cfg.Duration
// passes. With a name and message configured it also sends them.
func listen(ctx context.Context, s *chat.Session, cfg config.Config) error {
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	util.LogInfo("listening for packets...")

	if cfg.Name != "" && cfg.Message != "" {
		go func() {
			if err := s.SendBurst(ctx, burst(cfg)); err != nil && ctx.Err() == nil {
				util.LogError("send failed: %v", err)
			}
		}()
	}

	s.Listen(ctx, printEvent)
	return nil
}

func burst(cfg config.Config) chat.Burst {
	return chat.Burst{
		AnnounceTTL: cfg.AnnounceTTL,
		TTL:         cfg.TTL,
		Content:     cfg.Message,
		Count:       cfg.Count,
		Interval:    cfg.Interval,
	}
}

func printEvent(ev chat.Event) {
	switch ev.Type {
	case chat.EventJoin:
		pterm.FgCyan.Println(ev.String())
	case chat.EventMessage:
		pterm.Println(ev.String())
	case chat.EventUnknown:
		pterm.FgYellow.Println(ev.String())
	case chat.EventMalformed:
		pterm.FgRed.Println(ev.String())
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// hostAddr picks the signaling listen address for the host role.
func hostAddr(cfg config.Config) string {
	switch {
	case cfg.WSListen:
		return fmt.Sprintf(":%d", cfg.WSPort)
	case cfg.WSPort > 0:
		return fmt.Sprintf("127.0.0.1:%d", cfg.WSPort)
	default:
		return "127.0.0.1:0"
	}
}

// normalizeWSURL validates a signaling URL, forcing the /ws path and
// keeping the PIN query.
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	out := fmt.Sprintf("%s://%s/ws", scheme, u.Host)
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}
