package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/hantei/internal/adapters/mq/queue"
)

// conn adapts a websocket connection to the relay's Conn contract. Frames
// go through a bounded outbox drained by a single writer goroutine; pings use
// WriteControl, which gorilla allows concurrently with that writer.
type conn struct {
	ws           *websocket.Conn
	outbox       *queue.InMemoryQueue
	writeTimeout time.Duration
}

func (c *conn) Send(frame []byte) error {
	return c.outbox.Enqueue(frame)
}

func (c *conn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close stops accepting frames. The writer flushes what is queued, sends a
// close frame and drops the socket.
func (c *conn) Close() error {
	return c.outbox.Close()
}

// WriteFrame implements worker.Sink.
func (c *conn) WriteFrame(frame []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *conn) sayGoodbye() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
}
