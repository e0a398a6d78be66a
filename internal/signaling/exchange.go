package signaling

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// peer is the part of transport.Transport the exchange drives.
type peer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
}

// exchange relays SDP and ICE messages between a peer and the WebSocket.
type exchange struct {
	pc   peer
	conn *websocket.Conn
	mu   sync.Mutex // guards writes to conn
}

func (e *exchange) send(msg message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(msg)
}

// sendOffer creates an SDP offer, applies it locally and sends it.
func (e *exchange) sendOffer() error {
	offer, err := e.pc.CreateOffer()
	if err != nil {
		return err
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return e.send(message{Type: msgTypeOffer, SDP: offer.SDP})
}

// sendAnswer creates an SDP answer, applies it locally and sends it.
func (e *exchange) sendAnswer() error {
	answer, err := e.pc.CreateAnswer()
	if err != nil {
		return err
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	return e.send(message{Type: msgTypeAnswer, SDP: answer.SDP})
}

// sendCandidate forwards a local ICE candidate. A nil candidate marks the
// end of gathering and is not sent.
func (e *exchange) sendCandidate(c *webrtc.ICECandidate) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c.ToJSON())
	if err != nil {
		return err
	}
	return e.send(message{Type: msgTypeCandidate, Candidate: string(data)})
}

// watch applies incoming signaling messages until the connection fails.
func (e *exchange) watch() error {
	for {
		var msg message
		if err := e.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read WS message: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
			}); err != nil {
				return err
			}
			if err := e.sendAnswer(); err != nil {
				return err
			}

		case msgTypeAnswer:
			if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
			}); err != nil {
				return err
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("failed to parse ICE candidate: %w", err)
			}
			if err := e.pc.AddICECandidate(init); err != nil {
				return err
			}
		}
	}
}
