package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// pongWait is how long a connection may go silent before it's
	// considered dead; pingPeriod is how often the keepalive pump probes it,
	// mirroring the teacher's ws/client.go WritePump/ReadPump pair.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// pingWait bounds an on-demand Ping (the matchmaker's livecheck), which
	// runs independent of the keepalive cadence above.
	pingWait = 10 * time.Second

	maxMessageSize = 4096
	recvBuffer     = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsChannel adapts a gorilla websocket connection to the Channel interface.
// A background read pump is the connection's only reader, so Recv is backed
// by a buffered inbox; pong frames it observes are forwarded to whichever
// Ping call is currently waiting. A background keepalive pump pings the peer
// on a fixed cadence independent of any on-demand livecheck, so a
// mid-game connection that silently dies is still discovered instead of
// leaving Recv blocked forever; writeMu serializes every write against the
// underlying connection, since gorilla/websocket permits only one writer at
// a time.
type wsChannel struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	inbox chan []byte
	pong  chan struct{}

	closed    chan struct{}
	closeOnce func()
}

// NewChannel wraps an upgraded websocket connection and starts its read and
// keepalive pumps. The caller is responsible for eventually calling Close.
func NewChannel(conn *websocket.Conn) Channel {
	c := &wsChannel{
		conn:   conn,
		inbox:  make(chan []byte, recvBuffer),
		pong:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	c.closeOnce = sync.OnceFunc(func() {
		close(c.closed)
		conn.Close()
	})

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		select {
		case c.pong <- struct{}{}:
		default:
		}
		return nil
	})

	go c.readPump()
	go c.keepalivePump()
	return c
}

func (c *wsChannel) readPump() {
	defer c.closeOnce()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "transport", "err", err)
			}
			return
		}
		select {
		case c.inbox <- data:
		case <-c.closed:
			return
		}
	}
}

// keepalivePump pings the peer every pingPeriod, independent of any
// matchmaker-driven livecheck, so a connection that goes silent mid-game
// (not just while sitting in the waiting slot) is torn down once it stops
// answering rather than leaving Recv blocked forever.
func (c *wsChannel) keepalivePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.closeOnce()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsChannel) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.inbox:
		if !ok {
			return nil, ErrClosed
		}
		return data, nil
	case <-c.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *wsChannel) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	return nil
}

// Ping sends a control-frame ping and waits for the matching pong, which the
// read pump observes and forwards. It fails if ctx is done first.
func (c *wsChannel) Ping(ctx context.Context) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pingWait)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	// Discard a pong left over from an earlier keepalive ping so only a
	// reply to this ping counts.
	select {
	case <-c.pong:
	default:
	}
	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.PingMessage, nil, deadline)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-c.pong:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsChannel) Close() error {
	c.closeOnce()
	return nil
}

// ServeWS upgrades an HTTP request to a websocket and hands the resulting
// Channel to factory. It blocks until the upgrade fails or factory returns
// (factory is expected to run the session to completion before returning,
// or to detach its own goroutine and return immediately — the teacher's hub
// pattern does the latter).
func ServeWS(factory Factory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "tag", "transport", "err", err)
			return
		}
		ch := NewChannel(conn)
		factory(ch)
	}
}
