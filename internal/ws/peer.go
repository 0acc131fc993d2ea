// Package ws holds the websocket connection plumbing shared by the relay and the
// browser map: a per-connection send queue with a single writer goroutine,
// keepalive pings, and dropping of peers that cannot keep up.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// DefaultQueue is the number of frames buffered per peer before it is dropped.
	DefaultQueue = 256
)

// NewUpgrader returns an upgrader accepting any origin; CORS is enforced by the router.
func NewUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Frame is one outbound websocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

// Peer is one connected websocket client.
type Peer struct {
	conn *websocket.Conn
	send chan Frame

	done chan struct{}
	once sync.Once
}

// NewPeer wraps conn with a send queue of the given size.
func NewPeer(conn *websocket.Conn, queue int) *Peer {
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Peer{
		conn: conn,
		send: make(chan Frame, queue),
		done: make(chan struct{}),
	}
}

// RemoteAddr returns the client address.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Send queues f without blocking. It returns false when the peer is closed or
// its queue is full; the caller is expected to Close a peer that falls behind.
func (p *Peer) Send(f Frame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- f:
		return true
	default:
		return false
	}
}

// Close asks WritePump to send a close frame and release the connection.
// It is safe to call more than once.
func (p *Peer) Close() {
	p.once.Do(func() { close(p.done) })
}

// Done is closed when the peer is closed.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// WritePump drains the send queue and pings the client until the peer is closed.
// It must be the only goroutine writing to the connection, and it owns closing it:
// every peer needs a running WritePump.
func (p *Peer) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer p.conn.Close()
	defer p.Close()

	for {
		select {
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case f := <-p.send:
			typ := websocket.TextMessage
			if f.Binary {
				typ = websocket.BinaryMessage
			}
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(typ, f.Data); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads messages and hands them to fn until the connection fails.
// fn may be nil for peers that only listen.
func (p *Peer) ReadPump(limit int64, fn func(data []byte)) error {
	defer p.Close()

	p.conn.SetReadLimit(limit)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return err
		}
		if fn != nil {
			fn(data)
		}
	}
}
