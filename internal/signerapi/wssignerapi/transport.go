package wssignerapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultCallTimeout = 30 * time.Second

// Transport keeps one WebSocket connection to the signer. Calls are serialized on the connection and matched to answers by request ID. A broken connection is dropped and redialed on the next call.
type Transport struct {
	URL     string
	Header  http.Header
	Dialer  *websocket.Dialer
	Timeout time.Duration // Used when the context carries no deadline

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewTransport creates a WebSocket transport. Nothing is dialed until the first call.
func NewTransport(url string, header http.Header) *Transport {
	return &Transport{
		URL:     url,
		Header:  header,
		Dialer:  websocket.DefaultDialer,
		Timeout: defaultCallTimeout,
	}
}

func (t *Transport) Call(ctx context.Context, req *signerapi.Request) (interface{}, error) {
	op := string(req.Command)

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "无法序列化签名请求")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errorcode.NewSignerUnreachable(op, err)
	}

	conn, err := t.getConn(ctx)
	if err != nil {
		return nil, errorcode.NewSignerUnreachable(op, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.Timeout)
	}

	// Unblock the read if the context is cancelled mid-call
	stopWatch := make(chan struct{})
	watchDone := make(chan struct{})
	defer func() {
		close(stopWatch)
		<-watchDone
	}()
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stopWatch:
		}
	}()

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, reqBytes); err != nil {
		t.dropConn()
		return nil, errorcode.NewSignerUnreachable(op, errors.Wrap(err, "cannot write request"))
	}

	_ = conn.SetReadDeadline(deadline)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.dropConn()
			return nil, errorcode.NewSignerUnreachable(op, errors.Wrap(err, "cannot read response"))
		}

		requestID, result, err := signerapi.ParseResponseBody(req.Command, message)
		if requestID != "" && requestID != req.RequestID {
			// A late answer to a call that already gave up
			log.Debugf("Discarding signer answer for stale request %v", requestID)
			continue
		}

		return result, err
	}
}

func (t *Transport) getConn(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}

	conn, _, err := t.Dialer.DialContext(ctx, t.URL, t.Header)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot dial signer at %v", t.URL)
	}

	log.Debugf("Connected to signer at %v", t.URL)
	t.conn = conn
	return conn, nil
}

func (t *Transport) dropConn() {
	if t.conn == nil {
		return
	}

	_ = t.conn.Close()
	t.conn = nil
}

// Close sends a close frame and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := t.conn.Close()
	t.conn = nil
	return err
}
