package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/talento-chat/internal/logger"
	"github.com/spigell/talento-chat/internal/session"
	"github.com/spigell/talento-chat/internal/view"
	"github.com/spigell/talento-chat/internal/wsconn"
)

const (
	cmdUpload = "/cv"
	cmdSend   = "/enviar"
	cmdRemove = "/quitar"
	cmdNew    = "/nuevo"
	cmdHide   = "/ocultar"
	cmdShow   = "/mostrar"
	cmdStatus = "/estado"
	cmdHelp   = "/ayuda"
	cmdQuit   = "/salir"

	loopBuffer = 64
)

const helpText = `Escribe tu mensaje y presiona ENTER. Comandos:
  /cv <ruta>   elegir tu CV (PDF, cuando se solicite)
  /enviar      subir el CV elegido
  /quitar      descartar el CV elegido
  /nuevo       iniciar una nueva conversación (tras finalizar)
  /ocultar     ocultar el chat
  /mostrar     mostrar el chat
  /estado      ver el estado de la conversación
  /salir       salir
`

var errNoPath = errors.New("indica la ruta del archivo: /cv <ruta>")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a candidate evaluation conversation",
	Run: func(cmd *cobra.Command, _ []string) {
		config, err := getConfig()
		if err != nil {
			log.Fatalf("getting a config: %s", err)
		}

		logger, err := chatLogger(config)
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}
		defer logger.Sync()

		if err := startChat(cmd.Context(), config, logger); err != nil {
			logger.Fatal("chat failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("ws-url", "", "evaluation service websocket base url (env PUBLIC_WS_URL)")
	chatCmd.Flags().String("log-file", "", "file for the log, rotated. Empty string logs to stdout")

	viper.BindPFlag("ws-url", chatCmd.Flags().Lookup("ws-url"))
	viper.BindPFlag("log-file", chatCmd.Flags().Lookup("log-file"))
}

// chatLogger writes to the configured log file so entries stay out of the transcript.
func chatLogger(config *Config) (*zap.Logger, error) {
	return logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		File:  config.LogFile,
	})
}

// startChat runs one interactive conversation until the candidate quits.
func startChat(ctx context.Context, config *Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting the chat", zap.String("version", version), zap.String("endpoint", config.WSURL))

	token, err := resolveToken(config)
	if err != nil {
		return fmt.Errorf("loading api token: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       cmdQuit,
	})
	if err != nil {
		return fmt.Errorf("starting the input line: %w", err)
	}
	defer rl.Close()

	loop := session.NewLoop(loopBuffer)

	dialer := wsconn.NewDialer(logger, config.Chat.Keepalive)
	dialer.Header = chatHeaders(config, token)

	controller := session.New(sessionConfig(config), dialer, loop, session.WithLogger(logger))
	printer := view.NewPrinter(rl.Stdout())
	sh := &shell{c: controller, out: rl.Stdout(), quit: loop.Stop}

	loop.OnEvent = func() {
		s := controller.Snapshot()
		printer.Render(s)
		rl.SetPrompt(view.Prompt(s))
		rl.Refresh()
	}

	loop.Post(sh.start)
	go readInput(ctx, rl, loop, sh)

	err = loop.Run(ctx)
	controller.Terminate()
	logger.Info("chat finished", zap.String("session_id", controller.Snapshot().SessionID))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func sessionConfig(config *Config) session.Config {
	chat := config.Chat
	if chat == nil {
		chat = &ChatConfig{}
	}

	welcome := chat.Welcome
	if welcome == "" {
		welcome = session.TextWelcome
	}

	return session.Config{
		Endpoint:     config.WSURL,
		MaxMessages:  chat.MaxMessages,
		MaxFileSize:  chat.MaxFileSize,
		CVPhrases:    chat.CVPhrases,
		Welcome:      welcome,
		WelcomeDelay: chat.WelcomeDelay,
	}
}

func chatHeaders(config *Config, token string) http.Header {
	header := http.Header{}
	if config.UserAgent != "" {
		header.Set("User-Agent", config.UserAgent)
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return header
}

// readInput owns the terminal input. Everything it reads is handed to the loop.
func readInput(ctx context.Context, rl *readline.Instance, loop *session.Loop, sh *shell) {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) && line != "" {
			continue
		}
		if err != nil {
			loop.Post(sh.quit)
			return
		}

		in := parseInput(line)
		if in.kind == inputNone {
			continue
		}

		if in.kind == inputNew {
			var closed bool
			if err := loop.Do(ctx, func() { closed = sh.c.Snapshot().Closed }); err != nil {
				return
			}
			in.confirmed = closed && confirm(rl, "¿Iniciar una nueva conversación?")
		}

		if !loop.Post(func() { sh.apply(in) }) || in.kind == inputQuit {
			return
		}
	}
}

func confirm(rl *readline.Instance, question string) bool {
	rl.SetPrompt(question + " [s/N] ")
	answer, err := rl.Readline()
	if err != nil {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "si", "sí", "y", "yes":
		return true
	}
	return false
}

type inputKind int

const (
	inputNone inputKind = iota
	inputText
	inputUpload
	inputSend
	inputRemove
	inputNew
	inputHide
	inputShow
	inputStatus
	inputHelp
	inputQuit
	inputUnknown
)

type input struct {
	kind      inputKind
	text      string
	file      *session.File
	err       error
	confirmed bool
}

// parseInput runs off the loop; it may touch the filesystem for /cv.
func parseInput(line string) input {
	line = strings.TrimSpace(line)
	if line == "" {
		return input{}
	}

	if !strings.HasPrefix(line, "/") {
		return input{kind: inputText, text: line}
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.Trim(strings.TrimSpace(arg), `"'`)

	switch strings.ToLower(name) {
	case cmdUpload:
		if arg == "" {
			return input{kind: inputUpload, err: errNoPath}
		}
		file, err := session.FileFromPath(expandHome(arg))
		return input{kind: inputUpload, file: file, err: err}
	case cmdSend:
		return input{kind: inputSend}
	case cmdRemove:
		return input{kind: inputRemove}
	case cmdNew:
		return input{kind: inputNew}
	case cmdHide:
		return input{kind: inputHide}
	case cmdShow:
		return input{kind: inputShow}
	case cmdStatus:
		return input{kind: inputStatus}
	case cmdHelp:
		return input{kind: inputHelp}
	case cmdQuit:
		return input{kind: inputQuit}
	default:
		return input{kind: inputUnknown, text: name}
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}

// shell applies parsed input to the controller. Its methods run on the loop.
type shell struct {
	c    *session.Controller
	out  io.Writer
	quit func()
}

func (sh *shell) start() {
	fmt.Fprint(sh.out, helpText)
	sh.c.Show()
}

func (sh *shell) apply(in input) {
	switch in.kind {
	case inputText:
		sh.c.SendUserMessage(in.text)
	case inputUpload:
		if in.err != nil {
			fmt.Fprintf(sh.out, "No se pudo usar el archivo: %v\n", in.err)
			return
		}
		if !sh.c.Snapshot().UploaderVisible {
			fmt.Fprintln(sh.out, "La carga de CV no está disponible en este momento.")
			return
		}
		sh.c.ValidateFile(in.file)
	case inputSend:
		if sh.c.Snapshot().Pending == nil {
			fmt.Fprintln(sh.out, "No hay ningún CV elegido. Usa /cv <ruta>.")
			return
		}
		sh.c.UploadPending()
	case inputRemove:
		sh.c.RemovePending()
	case inputNew:
		if !sh.c.Snapshot().Closed {
			fmt.Fprintln(sh.out, "La conversación sigue activa.")
			return
		}
		if in.confirmed && sh.c.ResetForNewConversation() {
			sh.c.Show()
		}
	case inputHide:
		sh.c.Hide()
	case inputShow:
		if !sh.c.Show() {
			fmt.Fprintln(sh.out, session.TextEnded+" Usa /nuevo.")
		}
	case inputStatus:
		fmt.Fprint(sh.out, view.Status(sh.c.Snapshot()))
	case inputHelp:
		fmt.Fprint(sh.out, helpText)
	case inputQuit:
		sh.quit()
	case inputUnknown:
		fmt.Fprintf(sh.out, "Comando desconocido: %s. Escribe %s.\n", in.text, cmdHelp)
	}
}
