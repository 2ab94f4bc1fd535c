package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/talento-chat/internal/session"
)

type stubConn struct {
	sent [][]byte
}

func (c *stubConn) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *stubConn) Close() error { return nil }

type stubDialer struct {
	conn   *stubConn
	events session.ConnEvents
}

func (d *stubDialer) Dial(_ string, events session.ConnEvents) session.Conn {
	d.conn = &stubConn{}
	d.events = events
	return d.conn
}

// syncScheduler runs everything inline and drops timers.
type syncScheduler struct{}

func (syncScheduler) Post(fn func()) bool { fn(); return true }

func (syncScheduler) After(time.Duration, func()) {}

func (syncScheduler) Go(work func() func()) {
	if done := work(); done != nil {
		done()
	}
}

func newTestShell(t *testing.T) (*shell, *stubDialer, *bytes.Buffer, *bool) {
	t.Helper()

	dialer := &stubDialer{}
	c := session.New(session.Config{Endpoint: "ws://localhost:8000"}, dialer, syncScheduler{},
		session.WithFileReader(func(string) ([]byte, error) { return []byte("%PDF-1.4"), nil }))

	var out bytes.Buffer
	quit := false
	sh := &shell{c: c, out: &out, quit: func() { quit = true }}

	sh.start()
	require.NotNil(t, dialer.events)
	dialer.events.Opened()

	return sh, dialer, &out, &quit
}

func writePDF(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"), 0o600))
	return path
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		line string
		kind inputKind
		text string
	}{
		{line: "   ", kind: inputNone},
		{line: " Juan Pérez ", kind: inputText, text: "Juan Pérez"},
		{line: "/enviar", kind: inputSend},
		{line: "/QUITAR", kind: inputRemove},
		{line: "/nuevo", kind: inputNew},
		{line: "/ocultar", kind: inputHide},
		{line: "/mostrar", kind: inputShow},
		{line: "/estado", kind: inputStatus},
		{line: "/ayuda", kind: inputHelp},
		{line: "/salir", kind: inputQuit},
		{line: "/bailar ahora", kind: inputUnknown, text: "/bailar"},
	}

	for _, tt := range tests {
		got := parseInput(tt.line)
		assert.Equal(t, tt.kind, got.kind, tt.line)
		assert.Equal(t, tt.text, got.text, tt.line)
	}
}

func TestParseInputUpload(t *testing.T) {
	path := writePDF(t)

	got := parseInput(`/cv "` + path + `"`)
	require.NoError(t, got.err)
	assert.Equal(t, inputUpload, got.kind)
	assert.Equal(t, "cv.pdf", got.file.Name)
	assert.Equal(t, "application/pdf", got.file.MIME)

	got = parseInput("/cv")
	assert.ErrorIs(t, got.err, errNoPath)

	got = parseInput("/cv " + filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, got.err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "cv.pdf"), expandHome("~/cv.pdf"))
	assert.Equal(t, "/tmp/cv.pdf", expandHome("/tmp/cv.pdf"))
	assert.Equal(t, "~otro/cv.pdf", expandHome("~otro/cv.pdf"))
}

func TestShellSendsText(t *testing.T) {
	sh, dialer, out, _ := newTestShell(t)

	assert.Contains(t, out.String(), "/cv <ruta>")

	sh.apply(parseInput("Juan Pérez"))

	require.Len(t, dialer.conn.sent, 1)
	assert.JSONEq(t, `{"message":"Juan Pérez"}`, string(dialer.conn.sent[0]))
}

func TestShellUploadGatedByUploader(t *testing.T) {
	sh, dialer, out, _ := newTestShell(t)
	path := writePDF(t)
	out.Reset()

	sh.apply(parseInput("/cv " + path))
	assert.Equal(t, "La carga de CV no está disponible en este momento.\n", out.String())
	assert.Nil(t, sh.c.Snapshot().Pending)

	dialer.events.Received([]byte(`{"type":"greeting","data":{"response":"Sube tu CV","workflow_stage":"awaiting_cv"}}`))
	sh.apply(parseInput("/cv " + path))
	require.NotNil(t, sh.c.Snapshot().Pending)

	sh.apply(input{kind: inputSend})
	require.Len(t, dialer.conn.sent, 1)
	assert.Contains(t, string(dialer.conn.sent[0]), `"type":"cv_upload"`)
}

func TestShellSendWithoutPending(t *testing.T) {
	sh, dialer, out, _ := newTestShell(t)
	out.Reset()

	sh.apply(input{kind: inputSend})

	assert.Empty(t, dialer.conn.sent)
	assert.Equal(t, "No hay ningún CV elegido. Usa /cv <ruta>.\n", out.String())
}

func TestShellNewConversation(t *testing.T) {
	sh, dialer, out, _ := newTestShell(t)
	first := sh.c.Snapshot().SessionID
	out.Reset()

	sh.apply(input{kind: inputNew, confirmed: true})
	assert.Equal(t, "La conversación sigue activa.\n", out.String())

	dialer.events.Received([]byte(`{"type":"close","data":{"message":"Gracias"}}`))
	require.True(t, sh.c.Snapshot().Closed)

	sh.apply(input{kind: inputNew})
	assert.True(t, sh.c.Snapshot().Closed, "declined confirmation keeps the conversation")

	sh.apply(input{kind: inputNew, confirmed: true})
	s := sh.c.Snapshot()
	assert.False(t, s.Closed)
	assert.NotEqual(t, first, s.SessionID)
	assert.Equal(t, session.Connecting, s.Conn)
}

func TestShellHideShowStatusQuit(t *testing.T) {
	sh, dialer, out, quit := newTestShell(t)

	sh.apply(input{kind: inputHide})
	dialer.events.Received([]byte(`{"type":"message","data":{"response":"¿Edad?"}}`))
	assert.Equal(t, 1, sh.c.Snapshot().Unread)

	sh.apply(input{kind: inputShow})
	assert.Equal(t, 0, sh.c.Snapshot().Unread)

	out.Reset()
	sh.apply(input{kind: inputStatus})
	assert.Contains(t, out.String(), "Estado: En línea\n")

	out.Reset()
	sh.apply(input{kind: inputUnknown, text: "/bailar"})
	assert.Equal(t, "Comando desconocido: /bailar. Escribe /ayuda.\n", out.String())

	sh.apply(input{kind: inputQuit})
	assert.True(t, *quit)
}

func TestShellShowAfterTermination(t *testing.T) {
	sh, dialer, out, _ := newTestShell(t)
	dialer.events.Received([]byte(`{"type":"close"}`))
	out.Reset()

	sh.apply(input{kind: inputShow})

	assert.Equal(t, session.TextEnded+" Usa /nuevo.\n", out.String())
}

func TestSessionConfig(t *testing.T) {
	cfg := sessionConfig(&Config{WSURL: "ws://example.test", Chat: &ChatConfig{MaxMessages: 20}})

	assert.Equal(t, "ws://example.test", cfg.Endpoint)
	assert.Equal(t, 20, cfg.MaxMessages)
	assert.Equal(t, session.TextWelcome, cfg.Welcome)

	cfg = sessionConfig(&Config{Chat: &ChatConfig{Welcome: "Hi"}})
	assert.Equal(t, "Hi", cfg.Welcome)
}

func TestChatHeaders(t *testing.T) {
	h := chatHeaders(&Config{UserAgent: "talento/1"}, "secret")
	assert.Equal(t, "talento/1", h.Get("User-Agent"))
	assert.Equal(t, "Bearer secret", h.Get("Authorization"))

	assert.Empty(t, chatHeaders(&Config{}, ""))
}

func TestResolveToken(t *testing.T) {
	t.Setenv(tokenEnv, "")

	token, err := resolveToken(&Config{})
	require.NoError(t, err)
	assert.Empty(t, token)

	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(" abc \n"), 0o600))

	token, err = resolveToken(&Config{TokenFile: path})
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = resolveToken(&Config{TokenFile: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	t.Setenv(tokenEnv, "from-env")
	token, err = resolveToken(&Config{})
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)

	_, err = resolveToken(nil)
	assert.Error(t, err)
}

func TestChatLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")

	logger, err := chatLogger(&Config{LogFile: path})
	require.NoError(t, err)

	logger.Info("chat failed", zap.String("session_id", "s1"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chat failed")
	assert.Contains(t, string(data), "s1")
}

func TestStartChatTokenError(t *testing.T) {
	config := &Config{
		TokenFile: filepath.Join(t.TempDir(), "missing"),
		Chat:      &ChatConfig{},
	}

	err := startChat(context.Background(), config, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading api token")
}
