package main

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/bitchat/internal/config"
	"github.com/1ureka/bitchat/internal/protocol"
	"github.com/1ureka/bitchat/internal/util"
)

// runInteractive fills cfg through prompts when no -role flag is provided.
func runInteractive(cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Relay  — Run a broadcast hub",
			"Peer   — Join a relay hub",
			"Host   — Wait for a direct WebRTC peer",
			"Client — Connect to a direct WebRTC peer",
		}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	switch {
	case strings.HasPrefix(role, "Relay"):
		cfg.Role = config.RoleRelay
		cfg.ListenAddr = askText("Hub listen address", cfg.ListenAddr)
		return
	case strings.HasPrefix(role, "Peer"):
		cfg.Role = config.RolePeer
		cfg.RelayURL = askURL("Relay URL (e.g. ws://127.0.0.1:8080/ws)")
	case strings.HasPrefix(role, "Host"):
		cfg.Role = config.RoleHost
	default:
		cfg.Role = config.RoleClient
		cfg.WSURL = askURL("WebSocket URL (e.g. wss://***.asse.devtunnels.ms/ws?pin=123456)")
	}

	cfg.Name = askName()

	mode, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Send — Announce and send a message", "Listen — Print incoming packets"}).
		WithDefaultText("Select mode").
		Show()
	pterm.Println()

	if strings.HasPrefix(mode, "Listen") {
		cfg.Listen = true
		return
	}
	cfg.Message = askText("Message", "")
	cfg.Count = askCount()
}

// askText prompts once, falling back to def on empty input.
func askText(prompt, def string) string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(prompt).
		WithDefaultValue(def).
		Show()
	pterm.Println()
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return def
}

// askName prompts until the name fits the message envelope.
func askName() string {
	for {
		name := askText("Display name", "")
		if name != "" && len(name) <= protocol.MaxLen8 {
			return name
		}
		util.LogWarning("name must be 1 ~ %d bytes", protocol.MaxLen8)
		pterm.Println()
	}
}

// askCount prompts for the number of messages until a positive one is entered.
func askCount() int {
	for {
		raw := askText("How many times to send", "1")
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 1 {
			return n
		}
		util.LogWarning("invalid count: must be at least 1")
		pterm.Println()
	}
}

// askURL prompts for a valid WebSocket URL until one is entered.
func askURL(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()
		pterm.Println()

		if _, err := normalizeWSURL(raw); err == nil {
			return strings.TrimSpace(raw)
		}
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
