package session

import (
	"math"
	"time"
)

const (
	// StageInitial is the workflow stage assumed before the server reports one.
	StageInitial = "initial"
	// StageAwaitingCV means the server waits for the candidate CV.
	StageAwaitingCV = "awaiting_cv"
	// StagePositionSelected means a position was chosen and a CV is expected next.
	StagePositionSelected = "position_selected"

	DefaultMaxMessages  = 50
	DefaultMaxFileSize  = 5 * 1024 * 1024
	DefaultWelcomeDelay = 500 * time.Millisecond
	DefaultPath         = "/api/v1/chat/ws/"

	questionsPerTest = 5
	totalQuestions   = questionsPerTest * 2

	pdfMIME = "application/pdf"
)

// Texts shown to the candidate. The evaluation service talks Spanish.
const (
	TextWelcome         = "¡Hola! 👋 Bienvenido al proceso de selección. Estoy aquí para ayudarte a encontrar tu próximo empleo. ¿Cuál es tu nombre completo?"
	TextEnded           = "Esta conversación ha finalizado. Inicia una nueva para continuar."
	TextNotConnected    = "Error: No conectado"
	TextFinished        = "La conversación ha finalizado"
	TextLimitReached    = "Límite de mensajes alcanzado"
	TextNoResponse      = "Error: Sin respuesta del servidor"
	TextBadFrame        = "Error procesando respuesta del servidor"
	TextServerError     = "Error del servidor"
	TextUploadNoConn    = "Error: No hay conexión WebSocket"
	TextProcessingCV    = "Procesando CV..."
	TextReadFailed      = "Error al leer el archivo"
	TextOnlyPDF         = "Solo se aceptan archivos PDF."
	TextTooLarge        = "El archivo excede el máximo permitido (5MB)."
	PlaceholderDefault  = "Escribe tu mensaje..."
	PlaceholderFinished = "Conversación finalizada"
)

// DefaultCVPhrases are matched case-insensitively against assistant replies to
// decide whether the CV uploader should be offered.
var DefaultCVPhrases = []string{
	"sube tu cv",
	"subir cv",
	"formato pdf",
	"archivo pdf",
	"sube el cv",
	"envía tu cv",
	"enviar cv",
	"curriculum",
	"hoja de vida",
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Text string
	Role Role
}

type ConnState int

const (
	Closed ConnState = iota
	Connecting
	Open
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Progress is the assessment position reported by the server.
type Progress struct {
	CurrentTest     int
	CurrentQuestion int
}

// Completed returns how many questions were answered before the current one.
func (p Progress) Completed() int {
	return (p.CurrentTest-1)*questionsPerTest + (p.CurrentQuestion - 1)
}

// Percent returns the rounded share of completed questions, 0 when no test started.
func (p Progress) Percent() int {
	if p.CurrentTest <= 0 {
		return 0
	}

	percent := int(math.Floor(float64(p.Completed())/totalQuestions*100 + 0.5))
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

// QuestionsPerTest is the number of questions in one test of the assessment.
func (p Progress) QuestionsPerTest() int {
	return questionsPerTest
}

// File is a candidate-selected file, described the way a browser file input would.
type File struct {
	Path string
	Name string
	MIME string
	Size int64
}

// State is a copy of the controller state, safe to read outside the event loop.
type State struct {
	SessionID       string
	Conn            ConnState
	Closed          bool
	Messages        []Message
	Stage           string
	Progress        Progress
	UploaderVisible bool
	Pending         *File
	Placeholder     string
	Visible         bool
	Unread          int
}

// StatusText describes the connection the way the widget header does.
func (s State) StatusText() string {
	switch {
	case s.Conn == Connecting:
		return "Conectando..."
	case s.Conn == Open:
		return "En línea"
	case s.Closed:
		return "Finalizado"
	default:
		return "Desconectado"
	}
}

// InputEnabled reports whether the candidate can type a message.
func (s State) InputEnabled() bool {
	return s.Conn == Open && !s.Closed
}
