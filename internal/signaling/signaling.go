package signaling

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"

	"github.com/1ureka/bitchat/internal/transport"
	"github.com/1ureka/bitchat/internal/util"
)

// EstablishAsHost runs the host side of signaling:
//  1. Start a PIN-protected WS server on addr
//  2. Print the port and PIN
//  3. Wait for the client to connect
//  4. Create a Transport and send the offer
//  5. Wait for the DataChannel to open, then drop the WS server
func EstablishAsHost(ctx context.Context, addr string) (*transport.Transport, error) {
	srv := newServer(generatePIN(pinLength))
	wsPort, err := srv.start(addr)
	if err != nil {
		return nil, err
	}
	defer srv.close()

	pterm.DefaultBox.WithTitle("WebSocket Signaling Server").Println(
		fmt.Sprintf("Port : %d\nPIN  : %s\n\nForward this port and share ws(s)://<host>/ws?pin=%s", wsPort, srv.pin, srv.pin),
	)
	util.LogInfo("waiting for client...")

	wsConn, err := srv.waitForClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for client: %w", err)
	}
	defer wsConn.Close()
	util.LogInfo("client connected")

	tr, err := transport.NewTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Transport: %w", err)
	}

	ex := &exchange{pc: tr, conn: wsConn}
	tr.OnICECandidate(func(c *webrtc.ICECandidate) {
		// Best effort; the WS may already be gone once the channel is up.
		ex.sendCandidate(c)
	})

	errCh := make(chan error, 1)
	go func() { errCh <- ex.watch() }()

	if err := ex.sendOffer(); err != nil {
		tr.Close()
		return nil, fmt.Errorf("failed to send offer: %w", err)
	}

	return await(ctx, tr, errCh)
}

// EstablishAsClient runs the client side of signaling: dial the host's WS
// server, answer its offer and wait for the DataChannel to open.
func EstablishAsClient(ctx context.Context, wsURL string) (*transport.Transport, error) {
	util.LogInfo("connecting to host...")
	wsConn, err := connect(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	defer wsConn.Close()
	util.LogDebug("WS connected: %s", wsURL)

	tr, err := transport.NewTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Transport: %w", err)
	}

	ex := &exchange{pc: tr, conn: wsConn}
	tr.OnICECandidate(func(c *webrtc.ICECandidate) {
		ex.sendCandidate(c)
	})

	errCh := make(chan error, 1)
	go func() { errCh <- ex.watch() }()

	return await(ctx, tr, errCh)
}

func await(ctx context.Context, tr *transport.Transport, errCh <-chan error) (*transport.Transport, error) {
	select {
	case <-tr.Ready():
		util.LogSuccess("WebRTC DataChannel established, closing WS")
		return tr, nil

	case err := <-errCh:
		tr.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		tr.Close()
		return nil, ctx.Err()
	}
}
