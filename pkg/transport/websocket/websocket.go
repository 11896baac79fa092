// Package websocket implements the WebSocket transport (SPEC_FULL.md
// §4.4.4): two frame types (envelope, control), heartbeat-driven liveness,
// and client-declared event-channel subscription confirmed by the server.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jocax/qollective-sub002/pkg/config"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/transport"
)

// FrameType distinguishes the two WebSocket frame shapes (spec.md §4.4.4).
type FrameType string

const (
	FrameEnvelope FrameType = "envelope"
	FrameControl  FrameType = "control"
)

// ControlOp names a control-frame operation.
type ControlOp string

const (
	ControlPing      ControlOp = "ping"
	ControlPong      ControlOp = "pong"
	ControlSubscribe ControlOp = "subscribe"
	ControlSubscribed ControlOp = "subscribed"
	ControlClose     ControlOp = "close"
)

// Frame is the outer WebSocket message envelope.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Op      ControlOp       `json:"op,omitempty"`
	Channels []string       `json:"channels,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps one upgraded WebSocket connection with heartbeat tracking.
type Conn struct {
	ws            *websocket.Conn
	cfg           config.WebSocketConfig
	mu            sync.Mutex
	lastHeartbeat time.Time
}

// Upgrade promotes an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request, cfg config.WebSocketConfig) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, qerrors.ConnectionFailed("websocket upgrade", err)
	}
	ws.SetReadLimit(cfg.MaxFrameBytes)
	c := &Conn{ws: ws, cfg: cfg, lastHeartbeat: time.Now()}
	ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastHeartbeat = time.Now()
		c.mu.Unlock()
		return nil
	})
	return c, nil
}

// Dial opens a client-side WebSocket connection to ep and declares the
// requested event-channel subscriptions, waiting for the server's
// "subscribed" confirmation (spec.md §4.4.4).
func Dial(ctx context.Context, ep transport.Endpoint, cfg config.WebSocketConfig, channels []string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, ep.Raw, nil)
	if err != nil {
		return nil, qerrors.ConnectionFailed("websocket dial "+ep.Raw, err)
	}
	ws.SetReadLimit(cfg.MaxFrameBytes)
	c := &Conn{ws: ws, cfg: cfg, lastHeartbeat: time.Now()}
	ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastHeartbeat = time.Now()
		c.mu.Unlock()
		return nil
	})

	if len(channels) > 0 {
		if err := c.writeFrame(Frame{Type: FrameControl, Op: ControlSubscribe, Channels: channels}); err != nil {
			return nil, err
		}
		var confirm Frame
		if err := c.readFrame(&confirm); err != nil {
			return nil, err
		}
		if confirm.Type != FrameControl || confirm.Op != ControlSubscribed {
			return nil, qerrors.Validation("server did not confirm subscription", nil)
		}
	}
	return c, nil
}

// Dispatch sends one envelope frame and waits for the matching envelope
// reply, treating control frames (heartbeats) transparently in between.
func (c *Conn) Dispatch(ctx context.Context, ep transport.Endpoint, envJSON []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(timeout))
		c.ws.SetReadDeadline(time.Now().Add(timeout))
	}
	if err := c.writeFrame(Frame{Type: FrameEnvelope, Payload: envJSON}); err != nil {
		return nil, err
	}
	for {
		var frame Frame
		if err := c.readFrame(&frame); err != nil {
			return nil, err
		}
		switch frame.Type {
		case FrameEnvelope:
			return frame.Payload, nil
		case FrameControl:
			if frame.Op == ControlPing {
				_ = c.writeFrame(Frame{Type: FrameControl, Op: ControlPong})
			}
			continue
		}
	}
}

func (c *Conn) writeFrame(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(f); err != nil {
		return qerrors.Disconnected("write websocket frame", err)
	}
	return nil
}

func (c *Conn) readFrame(f *Frame) error {
	if err := c.ws.ReadJSON(f); err != nil {
		return qerrors.Disconnected("read websocket frame", err)
	}
	return nil
}

// RunHeartbeat sends periodic ping control frames and closes the
// connection if no WebSocket pong arrives within twice the ping interval
// (spec.md §4.4.4 "silent connections below heartbeat interval are
// closed").
func (c *Conn) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			silent := time.Since(c.lastHeartbeat) > 2*c.cfg.PingInterval
			c.mu.Unlock()
			if silent {
				c.Close()
				return
			}
			c.mu.Lock()
			_ = c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
		}
	}
}

// Close terminates the connection.
func (c *Conn) Close() error { return c.ws.Close() }
