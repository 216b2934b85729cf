// Package firehose consumes the com.atproto.sync.subscribeRepos event
// stream: a long-lived WebSocket connection carrying length-implicit
// DAG-CBOR frames (see the frame package), each dispatched to a
// caller-supplied Handler keyed on its payload schema.
package firehose

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-atproto/atproto/frame"
	"github.com/go-atproto/atproto/repo"
)

const subscribeNSID = "com.atproto.sync.subscribeRepos"

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Subscribe opens one connection to <baseURL>/xrpc/com.atproto.sync.subscribeRepos
// (ws:// or wss://), optionally resuming from cursor, and runs the
// decode/dispatch loop until ctx is cancelled, the connection closes, or
// a fatal condition (framing error, error frame, or handler error) ends
// it. It does not reconnect: per the cursor-resumption contract, that
// decision — with what cursor — belongs to the caller.
//
// forward is invoked synchronously, in emission order, for every
// handler call that returns a non-nil Processed value; it may be nil if
// the caller only cares about side effects performed inside handler
// methods. Subscribe never dispatches to forward or to handler from any
// goroutine but its own calling one (the ping keepalive below is purely
// internal bookkeeping and never touches handler or forward).
//
// The returned error is a *SubscriptionError for a framing abort or a
// server-reported error frame, a *HandlingError if the handler aborted
// the loop, or a plain error for dial/network failures.
func Subscribe(ctx context.Context, dialer Dialer, baseURL string, cursor *int64, handler Handler, forward func(Forwarded)) error {
	wsURL, err := subscribeURL(baseURL, cursor)
	if err != nil {
		return err
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return fmt.Errorf("firehose: dial: %w", err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return fmt.Errorf("firehose: set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					closeDone()
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	defer closeDone()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return fmt.Errorf("firehose: connection closed")
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("firehose: read: %w", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return fmt.Errorf("firehose: set read deadline: %w", err)
		}

		if ferr := dispatch(message, handler, forward); ferr != nil {
			return ferr
		}
	}
}

func subscribeURL(baseURL string, cursor *int64) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("firehose: invalid base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("firehose: unsupported scheme %q", u.Scheme)
	}
	u.Path = "/xrpc/" + subscribeNSID
	if cursor != nil {
		q := u.Query()
		q.Set("cursor", strconv.FormatInt(*cursor, 10))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// dispatch decodes one binary websocket message as a frame and routes
// it to handler. Framing/CBOR failures and handler errors are fatal;
// unknown op or unknown t values are ignored, per the forward
// compatibility rule.
func dispatch(message []byte, handler Handler, forward func(Forwarded)) error {
	h, payload, err := frame.Decode(bytes.NewReader(message))
	if err != nil {
		return &SubscriptionError{Kind: Abort, Reason: err.Error()}
	}

	switch h.Op {
	case frame.OpError:
		return dispatchError(payload)
	case frame.OpMessage:
		return dispatchMessage(h.T, payload, handler, forward)
	default:
		return nil // unknown op, ignored
	}
}

func dispatchError(payload []byte) error {
	m, err := repo.DecodeRecord(payload)
	if err != nil {
		return &SubscriptionError{Kind: Abort, Reason: "decoding error frame: " + err.Error()}
	}
	name := asString(m, "error")
	message := asString(m, "message")
	return &SubscriptionError{Kind: Other, Err: name, Reason: message}
}

func dispatchMessage(schema string, payload []byte, handler Handler, forward func(Forwarded)) error {
	m, err := repo.DecodeRecord(payload)
	if err != nil {
		return &SubscriptionError{Kind: Abort, Reason: "decoding " + schema + " payload: " + err.Error()}
	}

	var (
		seq    int64
		result any
		herr   error
	)
	switch schema {
	case SchemaCommit:
		evt, derr := decodeCommitEvent(m)
		if derr != nil {
			return &SubscriptionError{Kind: Abort, Reason: derr.Error()}
		}
		seq = evt.Seq
		result, herr = handler.HandleCommit(evt)
	case SchemaIdentity:
		evt := decodeIdentityEvent(m)
		seq = evt.Seq
		result, herr = handler.HandleIdentity(evt)
	case SchemaAccount:
		evt := decodeAccountEvent(m)
		seq = evt.Seq
		result, herr = handler.HandleAccount(evt)
	case SchemaHandle:
		evt := decodeHandleEvent(m)
		seq = evt.Seq
		result, herr = handler.HandleHandle(evt)
	case SchemaMigrate:
		evt := decodeMigrateEvent(m)
		seq = evt.Seq
		result, herr = handler.HandleMigrate(evt)
	case SchemaTombstone:
		evt := decodeTombstoneEvent(m)
		seq = evt.Seq
		result, herr = handler.HandleTombstone(evt)
	case SchemaInfo:
		result, herr = handler.HandleInfo(&InfoEvent{Name: asString(m, "name"), Message: asString(m, "message")})
	default:
		return nil // unknown t, ignored
	}

	if herr != nil {
		return &HandlingError{Reason: "schema " + schema, Cause: herr}
	}
	if result != nil && forward != nil {
		forward(Forwarded{Seq: seq, Value: result})
	}
	return nil
}
