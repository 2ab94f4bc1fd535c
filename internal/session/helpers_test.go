package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeConn struct {
	sent    [][]byte
	closed  int
	sendErr error
}

func (c *fakeConn) Send(data []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

type fakeDialer struct {
	targets []string
	events  []ConnEvents
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(target string, events ConnEvents) Conn {
	conn := &fakeConn{}
	d.targets = append(d.targets, target)
	d.events = append(d.events, events)
	d.conns = append(d.conns, conn)
	return conn
}

func (d *fakeDialer) last() (*fakeConn, ConnEvents) {
	return d.conns[len(d.conns)-1], d.events[len(d.events)-1]
}

// inlineScheduler runs posted events immediately. Timers and background work
// are held until the test releases them when hold is set.
type inlineScheduler struct {
	timers   []func()
	delays   []time.Duration
	hold     bool
	inflight []func() func()
}

func (s *inlineScheduler) Post(fn func()) bool {
	fn()
	return true
}

func (s *inlineScheduler) After(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.timers = append(s.timers, fn)
}

func (s *inlineScheduler) Go(work func() func()) {
	if s.hold {
		s.inflight = append(s.inflight, work)
		return
	}
	if done := work(); done != nil {
		done()
	}
}

func (s *inlineScheduler) fireTimers() {
	timers := s.timers
	s.timers = nil
	for _, fn := range timers {
		fn()
	}
}

func (s *inlineScheduler) finishWork() {
	work := s.inflight
	s.inflight = nil
	for _, w := range work {
		if done := w(); done != nil {
			done()
		}
	}
}

var errBoom = errors.New("boom")

func newTestController(t *testing.T, opts ...Option) (*Controller, *fakeDialer, *inlineScheduler) {
	t.Helper()

	dialer := &fakeDialer{}
	sched := &inlineScheduler{}
	c := New(Config{Endpoint: "ws://localhost:8000", Welcome: TextWelcome, WelcomeDelay: DefaultWelcomeDelay}, dialer, sched, opts...)

	return c, dialer, sched
}

// connect opens the controller and completes the handshake.
func connect(t *testing.T, c *Controller, d *fakeDialer) *fakeConn {
	t.Helper()

	c.Open()
	conn, events := d.last()
	events.Opened()

	if c.Snapshot().Conn != Open {
		t.Fatalf("expected open connection")
	}
	return conn
}

func frame(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return data
}

func intPtr(v int) *int {
	return &v
}

func lastMessage(c *Controller) Message {
	s := c.Snapshot()
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

func countRole(s State, role Role) int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
