package session

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/talento-chat/internal/logger"
)

// Conn is one live transport link. Send and Close are only called from the loop.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// ConnEvents receives the lifecycle of a Conn. Implementations may be called
// from any goroutine.
type ConnEvents interface {
	Opened()
	Received(data []byte)
	Failed(err error)
	Closed()
}

// Dialer starts a connection to target and returns its handle right away.
// Completion is reported through events.
type Dialer interface {
	Dial(target string, events ConnEvents) Conn
}

type Config struct {
	// Endpoint is the WebSocket base URL, e.g. ws://localhost:8000.
	Endpoint     string
	Path         string
	MaxMessages  int
	MaxFileSize  int64
	CVPhrases    []string
	Welcome      string
	WelcomeDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.CVPhrases == nil {
		c.CVPhrases = DefaultCVPhrases
	}
	if c.WelcomeDelay < 0 {
		c.WelcomeDelay = 0
	}
}

// Controller owns one candidate conversation. It is not safe for concurrent
// use: every method must run on the Scheduler's loop.
type Controller struct {
	cfg      Config
	dialer   Dialer
	sched    Scheduler
	logger   *zap.Logger
	readFile func(string) ([]byte, error)
	now      func() time.Time
	phrases  []string

	sessionID   string
	closed      bool
	conn        Conn
	connState   ConnState
	gen         uint64
	messages    []Message
	stage       string
	progress    Progress
	uploader    bool
	pending     *File
	placeholder string
	visible     bool
	unread      int
	epoch       uint64
	welcoming   bool
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFileReader replaces os.ReadFile for CV uploads.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(c *Controller) {
		if read != nil {
			c.readFile = read
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func New(cfg Config, dialer Dialer, sched Scheduler, opts ...Option) *Controller {
	cfg.setDefaults()

	c := &Controller{
		cfg:         cfg,
		dialer:      dialer,
		sched:       sched,
		logger:      zap.NewNop(),
		readFile:    os.ReadFile,
		now:         time.Now,
		stage:       StageInitial,
		placeholder: PlaceholderDefault,
	}

	for _, opt := range opts {
		opt(c)
	}

	for _, phrase := range cfg.CVPhrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			c.phrases = append(c.phrases, phrase)
		}
	}

	return c
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() State {
	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)

	var pending *File
	if c.pending != nil {
		p := *c.pending
		pending = &p
	}

	return State{
		SessionID:       c.sessionID,
		Conn:            c.connState,
		Closed:          c.closed,
		Messages:        messages,
		Stage:           c.stage,
		Progress:        c.progress,
		UploaderVisible: c.uploader,
		Pending:         pending,
		Placeholder:     c.placeholder,
		Visible:         c.visible,
		Unread:          c.unread,
	}
}

// Open connects the session unless it already has a live connection.
func (c *Controller) Open() {
	if c.closed {
		c.system(TextEnded)
		return
	}

	if c.sessionID == "" {
		c.sessionID = NewSessionID(c.now())
		c.log().Debug("session created")
	}

	if c.conn != nil && (c.connState == Open || c.connState == Connecting) {
		return
	}

	target, err := url.JoinPath(c.cfg.Endpoint, c.cfg.Path, c.sessionID)
	if err != nil {
		c.log().Error("building websocket target", zap.Error(err), zap.String("endpoint", c.cfg.Endpoint))
		c.system(TextNotConnected)
		return
	}

	if c.conn != nil {
		c.closeConn()
	}

	c.gen++
	c.connState = Connecting
	c.log().Info("connecting", zap.String("target", target))
	c.conn = c.dialer.Dial(target, &connEvents{c: c, gen: c.gen})
}

// SendUserMessage sends one free-text turn to the server.
func (c *Controller) SendUserMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if c.conn == nil || c.connState != Open {
		c.system(TextNotConnected)
		return
	}

	if c.closed {
		c.system(TextFinished)
		return
	}

	if len(c.messages) >= c.cfg.MaxMessages {
		c.log().Info("message limit reached", zap.Int("messages", len(c.messages)))
		c.system(TextLimitReached)
		c.Terminate()
		return
	}

	data, err := EncodeUserMessage(text)
	if err != nil {
		c.log().Error("encoding user message", zap.Error(err))
		c.system(TextBadFrame)
		return
	}

	if err := c.conn.Send(data); err != nil {
		c.log().Warn("sending user message", zap.Error(err))
		c.system(TextNotConnected)
		return
	}

	c.append(text, RoleUser)
}

// Terminate ends the conversation for good. It is safe to call repeatedly.
func (c *Controller) Terminate() {
	if !c.closed {
		c.log().Info("terminating conversation")
	}

	c.closed = true
	c.hideUploader()
	c.progress = Progress{}
	c.placeholder = PlaceholderFinished
	c.connState = Closed

	if c.conn != nil {
		c.closeConn()
	}
}

// ResetForNewConversation forgets a terminated conversation. The caller is
// expected to have asked the candidate first. It reports whether anything was reset.
func (c *Controller) ResetForNewConversation() bool {
	if !c.closed {
		return false
	}

	c.log().Info("starting a new conversation")

	c.sessionID = ""
	c.messages = nil
	c.progress = Progress{}
	c.hideUploader()
	c.stage = StageInitial
	c.closed = false
	c.placeholder = PlaceholderDefault
	c.unread = 0
	c.welcoming = false
	c.epoch++

	return true
}

// Show opens the widget. A terminated conversation has to be reset first.
func (c *Controller) Show() bool {
	if c.closed {
		return false
	}

	c.visible = true
	c.unread = 0

	if len(c.messages) == 0 && !c.welcoming && c.cfg.Welcome != "" {
		c.welcoming = true
		epoch := c.epoch
		c.sched.After(c.cfg.WelcomeDelay, func() {
			c.welcome(epoch)
		})
	}

	c.Open()
	return true
}

// Hide closes the widget; assistant messages arriving meanwhile count as unread.
func (c *Controller) Hide() {
	c.visible = false
}

func (c *Controller) welcome(epoch uint64) {
	if epoch != c.epoch || !c.welcoming {
		return
	}
	c.welcoming = false
	c.append(c.cfg.Welcome, RoleAssistant)
}

func (c *Controller) onConnectionOpen(gen uint64) {
	if !c.current(gen) {
		return
	}

	c.connState = Open
	c.log().Info("connected")
}

func (c *Controller) onConnectionClose(gen uint64) {
	if !c.current(gen) {
		return
	}

	c.connState = Closed
	c.conn = nil
	if c.closed {
		c.placeholder = PlaceholderFinished
	}
	c.log().Info("connection closed")
}

func (c *Controller) onConnectionError(gen uint64, err error) {
	if !c.current(gen) {
		return
	}

	c.connState = Closed
	c.log().Warn("connection error", zap.Error(err))
}

func (c *Controller) onFrame(gen uint64, data []byte) {
	if !c.current(gen) {
		c.log().Debug("dropping frame from a stale connection")
		return
	}

	c.DispatchInbound(data)
}

func (c *Controller) current(gen uint64) bool {
	return c.conn != nil && gen == c.gen
}

func (c *Controller) closeConn() {
	conn := c.conn
	c.conn = nil
	c.gen++

	if err := conn.Close(); err != nil {
		c.log().Debug("closing connection", zap.Error(err))
	}
}

func (c *Controller) showUploader() {
	c.uploader = true
}

func (c *Controller) hideUploader() {
	c.uploader = false
	c.pending = nil
}

func (c *Controller) append(text string, role Role) {
	c.messages = append(c.messages, Message{Text: text, Role: role})
	if role == RoleAssistant && !c.visible {
		c.unread++
	}
}

func (c *Controller) system(text string) {
	c.append(text, RoleSystem)
}

func (c *Controller) log() *zap.Logger {
	return logger.WithSessionFields(c.logger, c.sessionID, c.stage)
}

func tooLargeText(limit int64) string {
	if limit == DefaultMaxFileSize {
		return TextTooLarge
	}
	return fmt.Sprintf("El archivo excede el máximo permitido (%dMB).", limit/(1024*1024))
}

type connEvents struct {
	c   *Controller
	gen uint64
}

func (e *connEvents) Opened() {
	e.c.sched.Post(func() { e.c.onConnectionOpen(e.gen) })
}

func (e *connEvents) Received(data []byte) {
	e.c.sched.Post(func() { e.c.onFrame(e.gen, data) })
}

func (e *connEvents) Failed(err error) {
	e.c.sched.Post(func() { e.c.onConnectionError(e.gen, err) })
}

func (e *connEvents) Closed() {
	e.c.sched.Post(func() { e.c.onConnectionClose(e.gen) })
}
