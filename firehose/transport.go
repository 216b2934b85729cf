package firehose

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the collaborator interface for one open streaming connection,
// satisfied directly by *websocket.Conn (same method set) so the default
// dialer below needs no wrapping on the read side. Implementations
// backed by something other than gorilla/websocket only need to satisfy
// these five methods.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a Conn to a streaming endpoint. DialContext's signature
// intentionally mirrors gorilla/websocket.Dialer's, minus the
// *websocket.Conn-specific return type, so swapping backends is a matter
// of implementing this one method.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (Conn, *http.Response, error)
}

// gorillaDialer adapts *websocket.Dialer to Dialer.
type gorillaDialer struct{ d *websocket.Dialer }

// NewDefaultDialer returns a Dialer backed by websocket.DefaultDialer.
func NewDefaultDialer() Dialer {
	return gorillaDialer{d: websocket.DefaultDialer}
}

func (g gorillaDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, *http.Response, error) {
	conn, resp, err := g.d.DialContext(ctx, urlStr, header)
	if conn == nil {
		return nil, resp, err
	}
	return conn, resp, err
}
