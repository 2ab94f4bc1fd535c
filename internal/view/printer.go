// Package view renders conversation state on a terminal.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/spigell/talento-chat/internal/session"
)

const progressWidth = 20

// Printer writes what changed since the previous Render. It is meant to be
// called from the session loop after every event.
type Printer struct {
	out io.Writer

	assistant *color.Color
	user      *color.Color
	system    *color.Color
	info      *color.Color

	printed  int
	session  string
	progress session.Progress
	uploader bool
	pending  string
	closed   bool
	unread   int
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:       out,
		assistant: color.New(color.FgCyan),
		user:      color.New(color.FgGreen),
		system:    color.New(color.FgYellow),
		info:      color.New(color.Faint),
	}
}

// Render prints new messages, then progress, uploader and termination changes.
func (p *Printer) Render(s session.State) {
	if len(s.Messages) < p.printed || (s.SessionID != "" && p.session != "" && s.SessionID != p.session) {
		p.info.Fprintln(p.out, "── nueva conversación ──")
		p.printed = 0
		p.session = s.SessionID
	}
	if s.SessionID != "" {
		p.session = s.SessionID
	}

	if s.Visible {
		for _, msg := range s.Messages[p.printed:] {
			p.printMessage(msg)
		}
		p.printed = len(s.Messages)
		p.unread = 0
	} else if s.Unread > 0 && s.Unread != p.unread {
		p.unread = s.Unread
		p.info.Fprintf(p.out, "(%d mensaje(s) nuevo(s), escribe /mostrar)\n", s.Unread)
	}

	if s.Progress != p.progress {
		p.progress = s.Progress
		if s.Progress.CurrentTest > 0 {
			p.info.Fprintln(p.out, ProgressLine(s.Progress))
		}
	}

	if s.UploaderVisible != p.uploader {
		p.uploader = s.UploaderVisible
		if s.UploaderVisible {
			p.info.Fprintln(p.out, "Sube tu CV con /cv <ruta> (solo PDF, máximo 5MB).")
		}
	}

	pending := ""
	if s.Pending != nil {
		pending = s.Pending.Name
	}
	if pending != p.pending {
		p.pending = pending
		if pending != "" {
			p.info.Fprintf(p.out, "Archivo listo: %s. Usa /enviar para subirlo o /quitar para descartarlo.\n", pending)
		}
	}

	if s.Closed != p.closed {
		p.closed = s.Closed
		if s.Closed {
			p.info.Fprintln(p.out, s.Placeholder+". Usa /nuevo para iniciar otra o /salir.")
		}
	}
}

func (p *Printer) printMessage(msg session.Message) {
	switch msg.Role {
	case session.RoleAssistant:
		p.assistant.Fprintf(p.out, "Reclutador: %s\n", msg.Text)
	case session.RoleUser:
		p.user.Fprintf(p.out, "Tú: %s\n", msg.Text)
	default:
		p.system.Fprintf(p.out, "* %s\n", msg.Text)
	}
}

// Prompt returns the input prompt, which doubles as the status indicator.
func Prompt(s session.State) string {
	if s.Closed {
		return fmt.Sprintf("[%s] %s > ", s.StatusText(), s.Placeholder)
	}
	return fmt.Sprintf("[%s] > ", s.StatusText())
}

// ProgressLine renders the assessment progress as "Test 1  2/5 [####----] 20%".
func ProgressLine(pr session.Progress) string {
	percent := pr.Percent()
	filled := percent * progressWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressWidth-filled)

	return fmt.Sprintf("Test %d  %d/%d [%s] %d%%",
		pr.CurrentTest, pr.CurrentQuestion, pr.QuestionsPerTest(), bar, percent)
}

// Status is a multi-line summary for the /estado command.
func Status(s session.State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Estado: %s\n", s.StatusText())
	if s.SessionID != "" {
		fmt.Fprintf(&b, "Sesión: %s\n", s.SessionID)
	}
	fmt.Fprintf(&b, "Etapa: %s\n", s.Stage)
	fmt.Fprintf(&b, "Mensajes: %d\n", len(s.Messages))
	if s.Progress.CurrentTest > 0 {
		fmt.Fprintf(&b, "Progreso: %s\n", ProgressLine(s.Progress))
	}
	if s.UploaderVisible {
		b.WriteString("Carga de CV: habilitada\n")
	}
	if s.Pending != nil {
		fmt.Fprintf(&b, "Archivo pendiente: %s (%d bytes)\n", s.Pending.Name, s.Pending.Size)
	}

	return b.String()
}
