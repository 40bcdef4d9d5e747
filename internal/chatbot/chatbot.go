package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"AssistChat/internal/backend"
	"AssistChat/internal/config"
	"AssistChat/internal/conversation"
	"AssistChat/internal/session"
	"AssistChat/internal/telemetry"
)

// ChatBot runs a conversation in line mode. Run's goroutine owns the
// conversation; generations run on worker goroutines and hand their results
// back over a channel.
type ChatBot struct {
	config     config.Config
	conv       *conversation.Conversation
	display    Display
	runner     *Runner
	stats      *telemetry.StatsStore
	logger     *slog.Logger
	httpClient *http.Client

	results     chan conversation.Result
	confirmQuit bool
}

// NewChatBot wires a ChatBot around an existing conversation
func NewChatBot(cfg config.Config, conv *conversation.Conversation, display Display, runner *Runner, logger *slog.Logger) *ChatBot {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = &Runner{SessionID: conv.ID(), Backend: cfg.Backend, Model: cfg.Model, Logger: logger}
	}
	return &ChatBot{
		config:     cfg,
		conv:       conv,
		display:    display,
		runner:     runner,
		stats:      runner.Stats,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		results:    make(chan conversation.Result),
	}
}

// Conversation returns the conversation the bot drives
func (cb *ChatBot) Conversation() *conversation.Conversation {
	return cb.conv
}

// Run reads lines from in until EOF, /quit or ctx is done. At EOF it waits
// for an outstanding reply before returning.
func (cb *ChatBot) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	cb.logger.Info("chat started", "session_id", cb.conv.ID(), "backend", cb.config.Backend, "model", cb.config.Model)
	cb.display.Show(session.Entry{Speaker: "Assistant", Content: WelcomeMessage, Role: session.RoleAssistant})

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				lines = nil
				if !cb.conv.Busy() {
					return cb.finish(readErr)
				}
				continue
			}
			if cb.handleLine(ctx, line) {
				cb.logger.Info("chat ended", "session_id", cb.conv.ID())
				return nil
			}

		case res := <-cb.results:
			cb.apply(res)
			if lines == nil && !cb.conv.Busy() {
				return cb.finish(readErr)
			}
		}
	}
}

func (cb *ChatBot) finish(readErr chan error) error {
	cb.logger.Info("chat ended", "session_id", cb.conv.ID(), "reason", "eof")
	select {
	case err := <-readErr:
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	default:
	}
	return nil
}

// handleLine reports whether the loop should stop
func (cb *ChatBot) handleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	if strings.HasPrefix(input, "/") {
		shouldQuit, err := cb.handleCommand(ctx, input)
		if err != nil {
			cb.display.Notice(fmt.Sprintf("Error: %v", err))
			cb.logger.Error("command error", "error", err)
		}
		return shouldQuit
	}

	cb.submit(ctx, input)
	return false
}

func (cb *ChatBot) submit(ctx context.Context, question string) {
	job, ok := cb.conv.Submit(question)
	if !ok {
		if cb.conv.Busy() {
			cb.display.Notice("Still working on the previous question. Please wait for the reply.")
		}
		return
	}

	history := cb.conv.History()
	cb.display.Show(session.EntryFor(history[len(history)-1]))
	cb.display.SetBusy(true)

	go func() {
		res := cb.runner.Run(ctx, job)
		select {
		case cb.results <- res:
		case <-ctx.Done():
		}
	}()
}

func (cb *ChatBot) apply(res conversation.Result) {
	msg, ok := cb.conv.Apply(res)
	if !ok {
		return
	}
	cb.confirmQuit = false
	cb.display.Show(session.EntryFor(msg))
	cb.display.SetBusy(false)
}

// handleCommand handles slash commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		if cb.conv.Busy() && !cb.confirmQuit {
			cb.confirmQuit = true
			cb.display.Notice("The assistant is still working. Type /quit again to exit anyway.")
			return false, nil
		}
		return true, nil

	case "/clear", "/reset":
		if cb.conv.Reset() {
			cb.display.Notice("A reply was still being generated; it will be discarded.")
		}
		cb.confirmQuit = false
		cb.display.SetBusy(false)
		cb.display.Clear()
		cb.display.Show(session.Entry{Speaker: "Assistant", Content: WelcomeMessage, Role: session.RoleAssistant})
		return false, nil

	case "/models":
		if cb.config.Backend != config.BackendOllama {
			return false, fmt.Errorf("/models is only available with the ollama backend")
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		models, err := backend.ListOllamaModels(ctx, cb.httpClient, cb.config.BaseURL)
		if err != nil {
			return false, fmt.Errorf("failed to list Ollama models: %w", err)
		}
		cb.display.Notice(FormatModels(models, cb.config.Model))
		return false, nil

	case "/stats":
		if cb.stats == nil {
			cb.display.Notice("Generation stats are disabled. Set stats_db to enable them.")
			return false, nil
		}
		sum, err := cb.stats.Summarize(ctx, cb.conv.ID())
		if err != nil {
			return false, err
		}
		cb.display.Notice(fmt.Sprintf("Generations: %d (%d failed), average %.0f ms", sum.Total, sum.Failed, sum.AvgMillis))
		return false, nil

	case "/help":
		cb.display.Notice(HelpText)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", parts[0])
	}
}

// HelpText lists the slash commands
const HelpText = `Available commands:
  /clear, /reset   - Clear the conversation
  /models          - List available Ollama models
  /stats           - Show generation stats for this session
  /help            - Show this help message
  /quit, /exit     - Exit`

// FormatModels renders a model list, marking the current one
func FormatModels(models []backend.OllamaModel, current string) string {
	if len(models) == 0 {
		return "No Ollama models installed."
	}
	var b strings.Builder
	b.WriteString("Available Ollama models:")
	for i, model := range models {
		sizeGB := float64(model.Size) / (1024 * 1024 * 1024)
		mark := ""
		if model.Name == current {
			mark = " (current)"
		}
		fmt.Fprintf(&b, "\n%d. %s - %.2f GB%s", i+1, model.Name, sizeGB, mark)
	}
	return b.String()
}
