package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/1ureka/bitchat/internal/config"
)

// cliFlags holds the parsed command line. Only flags the user actually set
// override the config file.
type cliFlags struct {
	fs *flag.FlagSet

	configPath string
	debug      bool

	role          string
	name          string
	senderID      string
	message       string
	count         int
	interval      time.Duration
	ttl           int
	announceTTL   int
	listen        bool
	duration      time.Duration
	dedupWindow   time.Duration
	relayURL      string
	listenAddr    string
	wsPort        int
	wsListen      bool
	wsURL         string
	statsInterval time.Duration
}

func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	d := config.Default()
	f := &cliFlags{fs: flag.NewFlagSet("bitchat", flag.ContinueOnError)}
	fs := f.fs
	fs.SetOutput(output)

	fs.StringVar(&f.configPath, "config", "", "TOML config file; flags override its values")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging with frame hex dumps")

	fs.StringVar(&f.role, "role", "", "Role: relay, peer, host or client (prompted when empty)")
	fs.StringVar(&f.name, "name", "", "Display name announced to peers")
	fs.StringVar(&f.senderID, "sender-id", "", "8-byte sender id as 16 hex digits or 8 characters (random when empty)")
	fs.StringVar(&f.message, "message", "", "Message content to send")
	fs.IntVar(&f.count, "count", d.Count, "Number of messages to send after announcing")
	fs.DurationVar(&f.interval, "interval", d.Interval, "Pause after each sent frame")
	fs.IntVar(&f.ttl, "ttl", int(d.TTL), "Message TTL (0~255)")
	fs.IntVar(&f.announceTTL, "announce-ttl", int(d.AnnounceTTL), "Announce TTL (0~255)")
	fs.BoolVar(&f.listen, "listen", false, "Listen for packets and print them")
	fs.DurationVar(&f.duration, "duration", d.Duration, "How long to listen (0 until interrupted)")
	fs.DurationVar(&f.dedupWindow, "dedup-window", d.DedupWindow, "How long message UIDs are remembered (0 disables)")
	fs.StringVar(&f.relayURL, "relay", "", "Relay hub URL (peer only), e.g. ws://127.0.0.1:8080/ws")
	fs.StringVar(&f.listenAddr, "listen-addr", d.ListenAddr, "Hub listen address (relay only)")
	fs.IntVar(&f.wsPort, "ws-port", 0, "WebSocket signaling server port (host only, 0 picks one)")
	fs.BoolVar(&f.wsListen, "ws-listen", false, "Listen on all network interfaces (host only, for LAN access)")
	fs.StringVar(&f.wsURL, "ws-url", "", "Signaling URL including ?pin= (client only)")
	fs.DurationVar(&f.statsInterval, "stats-interval", d.StatsInterval, "Traffic report interval (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return f, nil
}

// apply copies every explicitly set flag onto cfg.
func (f *cliFlags) apply(cfg *config.Config) error {
	var err error
	f.fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "role":
			cfg.Role = config.Role(f.role)
		case "name":
			cfg.Name = f.name
		case "sender-id":
			cfg.SenderID = f.senderID
		case "message":
			cfg.Message = f.message
		case "count":
			cfg.Count = f.count
		case "interval":
			cfg.Interval = f.interval
		case "ttl":
			cfg.TTL, err = ttlFlag("ttl", f.ttl)
		case "announce-ttl":
			cfg.AnnounceTTL, err = ttlFlag("announce-ttl", f.announceTTL)
		case "listen":
			cfg.Listen = f.listen
		case "duration":
			cfg.Duration = f.duration
		case "dedup-window":
			cfg.DedupWindow = f.dedupWindow
		case "relay":
			cfg.RelayURL = f.relayURL
		case "listen-addr":
			cfg.ListenAddr = f.listenAddr
		case "ws-port":
			cfg.WSPort = f.wsPort
		case "ws-listen":
			cfg.WSListen = f.wsListen
		case "ws-url":
			cfg.WSURL = f.wsURL
		case "stats-interval":
			cfg.StatsInterval = f.statsInterval
		}
	})
	return err
}

func ttlFlag(name string, v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("invalid -%s %d: must be 0~255", name, v)
	}
	return uint8(v), nil
}
