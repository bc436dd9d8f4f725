package server

import (
	"context"
	"sync"
	"time"

	"github.com/park285/dama-table/internal/metrics"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// conn is one accepted websocket. Frames are queued by Send and written by
// writePump, so room code never blocks on a slow peer.
type conn struct {
	id      string
	ws      *websocket.Conn
	send    chan any
	closing chan struct{}
	log     *zap.Logger
	metrics *metrics.Metrics

	writeTimeout time.Duration

	closeOnce   sync.Once
	closeCode   websocket.StatusCode
	closeReason string
}

func newConn(id string, ws *websocket.Conn, queue int, writeTimeout time.Duration, log *zap.Logger, m *metrics.Metrics) *conn {
	if queue <= 0 {
		queue = 32
	}
	return &conn{
		id:           id,
		ws:           ws,
		send:         make(chan any, queue),
		closing:      make(chan struct{}),
		log:          log,
		metrics:      m,
		writeTimeout: writeTimeout,
	}
}

// Send queues a frame. A peer whose queue is full is disconnected.
func (c *conn) Send(frame any) bool {
	select {
	case <-c.closing:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("send_queue_full")
		c.closeWith(websocket.StatusTryAgainLater, "send queue full")
		return false
	}
}

// closeWith asks the writer to flush what is queued and then close. Only the first call counts.
func (c *conn) closeWith(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closing)
	})
}

func (c *conn) writePump() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.log.Debug("ws_write_error", zap.Error(err))
				c.closeWith(websocket.StatusInternalError, "write failed")
				_ = c.ws.CloseNow()
				return
			}
		case <-c.closing:
			c.drain()
			_ = c.ws.Close(c.closeCode, c.closeReason)
			return
		}
	}
}

func (c *conn) drain() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(frame any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, frame)
}
