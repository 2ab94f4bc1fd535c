package wsconn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitTimeout = 2 * time.Second

type recorder struct {
	opened   chan struct{}
	received chan []byte
	failed   chan error
	closed   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		opened:   make(chan struct{}, 1),
		received: make(chan []byte, 16),
		failed:   make(chan error, 1),
		closed:   make(chan struct{}, 1),
	}
}

func (r *recorder) Opened()              { r.opened <- struct{}{} }
func (r *recorder) Received(data []byte) { r.received <- data }
func (r *recorder) Failed(err error)     { r.failed <- err }
func (r *recorder) Closed()              { r.closed <- struct{}{} }

func wait[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

// newServer starts a websocket endpoint that hands every accepted connection to handle.
func newServer(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer ws.Close()
		handle(ws)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws/eval_1"
}

func TestDialSendReceiveClose(t *testing.T) {
	fromClient := make(chan string, 4)
	serverDone := make(chan error, 1)

	target := newServer(t, func(ws *websocket.Conn) {
		_, data, err := ws.ReadMessage()
		if err != nil {
			serverDone <- err
			return
		}
		fromClient <- string(data)

		if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"greeting","data":{"response":"Hola"}}`)); err != nil {
			serverDone <- err
			return
		}

		_, _, err = ws.ReadMessage()
		serverDone <- err
	})

	events := newRecorder()
	conn := NewDialer(zap.NewNop(), 0).Dial(target, events)

	wait(t, events.opened, "open")
	require.NoError(t, conn.Send([]byte(`{"message":"Juan Pérez"}`)))
	assert.Equal(t, `{"message":"Juan Pérez"}`, wait(t, fromClient, "client frame"))

	assert.JSONEq(t, `{"type":"greeting","data":{"response":"Hola"}}`, string(wait(t, events.received, "server frame")))

	require.NoError(t, conn.Close())
	err := wait(t, serverDone, "server close")
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected server error: %v", err)

	assert.ErrorIs(t, conn.Send([]byte(`{}`)), ErrNotConnected)
	assert.NoError(t, conn.Close())

	select {
	case <-events.closed:
		t.Fatalf("no events expected after Close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServerCloseReportsClosed(t *testing.T) {
	target := newServer(t, func(ws *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	events := newRecorder()
	NewDialer(nil, 0).Dial(target, events)

	wait(t, events.opened, "open")
	wait(t, events.closed, "close")

	select {
	case err := <-events.failed:
		t.Fatalf("normal closure must not fail, got %v", err)
	default:
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws/eval_1"
	srv.Close()

	events := newRecorder()
	conn := NewDialer(nil, 0).Dial(target, events)

	err := wait(t, events.failed, "failure")
	assert.Contains(t, err.Error(), "dial")
	wait(t, events.closed, "close")

	assert.ErrorIs(t, conn.Send([]byte(`{}`)), ErrNotConnected)
}

func TestKeepaliveSendsPing(t *testing.T) {
	pings := make(chan string, 1)
	target := newServer(t, func(ws *websocket.Conn) {
		_, data, err := ws.ReadMessage()
		if err == nil {
			pings <- string(data)
		}
		_, _, _ = ws.ReadMessage()
	})

	events := newRecorder()
	conn := NewDialer(nil, 10*time.Millisecond).Dial(target, events)
	t.Cleanup(func() { conn.Close() })

	wait(t, events.opened, "open")
	assert.JSONEq(t, `{"type":"ping"}`, wait(t, pings, "ping"))
}
