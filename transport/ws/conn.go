package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Conn adapts a websocket connection to core.Sink. Writes are serialized
// because the handler goroutine, the liveness sweep, and other peers'
// broadcast fan-outs all send on the same socket.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send writes one text frame.
func (c *Conn) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a close frame with the given code and reason, then closes the
// socket. Safe to call more than once.
func (c *Conn) Close(code int, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	// Control frames carry at most 125 bytes, 2 of which are the code.
	if len(reason) > 123 {
		reason = reason[:123]
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	return c.ws.Close()
}
