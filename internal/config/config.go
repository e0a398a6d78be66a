// Package config holds the CLI configuration and its optional TOML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/1ureka/bitchat/internal/protocol"
)

// Role represents what the process does on the link.
type Role string

const (
	RoleRelay  Role = "relay"  // run the WebSocket broadcast hub
	RolePeer   Role = "peer"   // join a relay hub
	RoleHost   Role = "host"   // WebRTC peer that serves signaling
	RoleClient Role = "client" // WebRTC peer that dials signaling
)

// Config stores every parameter gathered from flags, the config file or the
// interactive prompts.
type Config struct {
	Role Role

	// Identity
	Name     string
	SenderID string // 16 hex digits or an 8-byte literal; empty means random

	// Sending
	Message     string
	Count       int           // messages sent after the announce
	Interval    time.Duration // pause between frames
	TTL         uint8         // message TTL
	AnnounceTTL uint8

	// Listening
	Listen      bool
	Duration    time.Duration // 0 listens until interrupted
	DedupWindow time.Duration

	// Links
	RelayURL   string // peer: ws://host:port/ws
	ListenAddr string // relay: hub listen address
	WSPort     int    // host: signaling port, 0 picks one
	WSListen   bool   // host: listen on all interfaces
	WSURL      string // client: signaling URL including ?pin=

	StatsInterval time.Duration
}

// Default returns the stock settings: announce TTL 3,
// message TTL 5 and half a second between frames.
func Default() Config {
	return Config{
		Count:         1,
		Interval:      500 * time.Millisecond,
		TTL:           5,
		AnnounceTTL:   3,
		DedupWindow:   10 * time.Minute,
		ListenAddr:    ":8080",
		StatsInterval: 10 * time.Second,
	}
}

type fileConfig struct {
	Role          string `toml:"role"`
	Name          string `toml:"name"`
	SenderID      string `toml:"sender_id"`
	Message       string `toml:"message"`
	Count         int    `toml:"count"`
	Interval      string `toml:"interval"`
	TTL           int    `toml:"ttl"`
	AnnounceTTL   int    `toml:"announce_ttl"`
	Listen        bool   `toml:"listen"`
	Duration      string `toml:"duration"`
	DedupWindow   string `toml:"dedup_window"`
	RelayURL      string `toml:"relay_url"`
	ListenAddr    string `toml:"listen_addr"`
	WSPort        int    `toml:"ws_port"`
	WSListen      bool   `toml:"ws_listen"`
	WSURL         string `toml:"ws_url"`
	StatsInterval string `toml:"stats_interval"`
}

// Load reads a TOML file on top of base. Keys absent from the file keep
// their base value.
func Load(path string, base Config) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	cfg := base
	if meta.IsDefined("role") {
		cfg.Role = Role(strings.TrimSpace(raw.Role))
	}
	if meta.IsDefined("name") {
		cfg.Name = raw.Name
	}
	if meta.IsDefined("sender_id") {
		cfg.SenderID = strings.TrimSpace(raw.SenderID)
	}
	if meta.IsDefined("message") {
		cfg.Message = raw.Message
	}
	if meta.IsDefined("count") {
		cfg.Count = raw.Count
	}
	if meta.IsDefined("ttl") {
		if cfg.TTL, err = parseTTL("ttl", raw.TTL); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("announce_ttl") {
		if cfg.AnnounceTTL, err = parseTTL("announce_ttl", raw.AnnounceTTL); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("listen") {
		cfg.Listen = raw.Listen
	}
	if meta.IsDefined("relay_url") {
		cfg.RelayURL = strings.TrimSpace(raw.RelayURL)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("ws_port") {
		cfg.WSPort = raw.WSPort
	}
	if meta.IsDefined("ws_listen") {
		cfg.WSListen = raw.WSListen
	}
	if meta.IsDefined("ws_url") {
		cfg.WSURL = strings.TrimSpace(raw.WSURL)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"interval", raw.Interval, &cfg.Interval},
		{"duration", raw.Duration, &cfg.Duration},
		{"dedup_window", raw.DedupWindow, &cfg.DedupWindow},
		{"stats_interval", raw.StatsInterval, &cfg.StatsInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

func parseTTL(key string, v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%s must be 0~255, got %d", key, v)
	}
	return uint8(v), nil
}

// Validate checks the combination of settings for the selected role.
func (c Config) Validate() error {
	var errs []error

	switch c.Role {
	case RoleRelay:
		if c.ListenAddr == "" {
			errs = append(errs, errors.New("relay role requires a listen address"))
		}
		return errors.Join(errs...)
	case RolePeer:
		if c.RelayURL == "" {
			errs = append(errs, errors.New("peer role requires a relay URL"))
		}
	case RoleHost:
		if c.WSPort < 0 || c.WSPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid ws port %d: must be 0~65535", c.WSPort))
		}
	case RoleClient:
		if c.WSURL == "" {
			errs = append(errs, errors.New("client role requires a signaling URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid role %q: must be relay, peer, host or client", c.Role))
	}

	if !c.Listen && (c.Name == "" || c.Message == "") {
		errs = append(errs, errors.New("sending requires both a name and a message"))
	}
	if len(c.Name) > protocol.MaxLen8 {
		errs = append(errs, fmt.Errorf("name is %d bytes, max %d", len(c.Name), protocol.MaxLen8))
	}
	if c.Count < 1 {
		errs = append(errs, fmt.Errorf("count must be at least 1, got %d", c.Count))
	}
	if c.Interval < 0 || c.Duration < 0 {
		errs = append(errs, errors.New("interval and duration must not be negative"))
	}
	if c.SenderID != "" {
		if _, err := protocol.ParseSenderID(c.SenderID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Identity returns the configured SenderID, or a random one when unset.
func (c Config) Identity() (protocol.SenderID, error) {
	if c.SenderID == "" {
		return protocol.NewSenderID()
	}
	return protocol.ParseSenderID(c.SenderID)
}
