package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/hantei/pkg/logger"
)

// frame is the union of every field a simulated client sends.
type frame struct {
	Action     string `json:"action"`
	DeviceID   string `json:"deviceId,omitempty"`
	LicenseKey string `json:"licenseKey,omitempty"`
	Target     string `json:"target,omitempty"`
	Category   string `json:"category,omitempty"`
	Magnitude  int    `json:"magnitude,omitempty"`
}

// reply is the union of every field the relay sends back.
type reply struct {
	Action    string            `json:"action"`
	Target    string            `json:"target,omitempty"`
	Magnitude int               `json:"magnitude,omitempty"`
	Plan      string            `json:"plan,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Entries   []json.RawMessage `json:"entries,omitempty"`
}

// client is one simulated device. A background goroutine feeds inbox until
// the connection drops.
type client struct {
	name   string
	conn   *websocket.Conn
	inbox  chan reply
	logger logger.Logger
}

// wsURL turns an http(s) base URL into the websocket endpoint.
func wsURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

func dial(ctx context.Context, endpoint, name string, verbose bool) (*client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}
	c := &client{
		name:   name,
		conn:   conn,
		inbox:  make(chan reply, inboxSize),
		logger: logger.Get().Named("sim").With(logger.String("client", name)),
	}
	go c.readLoop(verbose)
	return c, nil
}

func (c *client) readLoop(verbose bool) {
	defer close(c.inbox)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var r reply
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		if verbose {
			c.logger.Debug(context.Background(), "frame received", logger.String("frame", string(data)))
		}
		select {
		case c.inbox <- r:
		default:
		}
	}
}

func (c *client) send(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// await returns the first reply whose action is in want.
func (c *client) await(ctx context.Context, timeout time.Duration, want ...string) (reply, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return reply{}, ctx.Err()
		case <-timer.C:
			return reply{}, fmt.Errorf("%w: %s waited for %v", ErrNoReply, c.name, want)
		case r, ok := <-c.inbox:
			if !ok {
				return reply{}, fmt.Errorf("%w: %s connection closed", ErrNoReply, c.name)
			}
			for _, w := range want {
				if r.Action == w {
					return r, nil
				}
			}
		}
	}
}

func (c *client) close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}
