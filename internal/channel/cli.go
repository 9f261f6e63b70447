package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"agriassist/internal/assistant"
	"agriassist/internal/domain"
)

// stagedImage is an uploaded image waiting to be submitted with a question.
// At most one is staged; it attaches to exactly one submission.
type stagedImage struct {
	bytes []byte
	name  string
}

// CLI implements domain.Channel for interactive terminal chat. An image is
// staged with `/image <path>` and sent with the next message (or by
// pressing Enter on an empty line).
type CLI struct {
	assistant *assistant.Assistant
	sessions  *assistant.Sessions
	conv      *domain.Conversation
	logger    *slog.Logger
	in        io.Reader
	out       io.Writer

	staged *stagedImage

	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
}

type CLIConfig struct {
	Assistant *assistant.Assistant
	Sessions  *assistant.Sessions
	Logger    *slog.Logger
	In        io.Reader
	Out       io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		assistant: cfg.Assistant,
		sessions:  cfg.Sessions,
		conv:      cfg.Sessions.GetOrCreate("cli"),
		logger:    cfg.Logger,
		in:        cfg.In,
		out:       cfg.Out,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the interactive REPL and blocks until the context is
// cancelled or input ends.
func (c *CLI) Start(ctx context.Context) error {
	fmt.Fprintln(c.out, "Agri-Assistant CLI. Ask about your crops, or stage a plant photo with /image <path>.")
	fmt.Fprintln(c.out, "Commands: /image <path>, /clear, /reset, /quit")
	c.printAssistant(domain.Greeting)
	fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if done := c.handleLine(ctx, line); done {
			return nil
		}
		fmt.Fprint(c.out, "You> ")
	}
}

// handleLine processes one input line; returns true when the user quits.
func (c *CLI) handleLine(ctx context.Context, line string) bool {
	switch {
	case line == "/quit" || line == "/exit" || line == "/q":
		return true
	case line == "/clear":
		if c.staged == nil {
			fmt.Fprintln(c.out, "No image staged.")
		} else {
			fmt.Fprintf(c.out, "Removed staged image %s.\n", c.staged.name)
			c.staged = nil
		}
		return false
	case line == "/reset":
		c.sessions.Reset("cli")
		c.conv = c.sessions.GetOrCreate("cli")
		c.staged = nil
		fmt.Fprintln(c.out, "Conversation cleared.")
		c.printAssistant(domain.Greeting)
		return false
	case strings.HasPrefix(line, "/image"):
		c.stageImage(strings.TrimSpace(strings.TrimPrefix(line, "/image")))
		return false
	case line == "" && c.staged == nil:
		return false
	}

	input := assistant.TurnInput{Text: line}
	if c.staged != nil {
		input.Image = c.staged.bytes
		input.ImageName = c.staged.name
	}

	c.startThinking()
	res, err := c.assistant.Respond(ctx, c.conv, input)
	c.stopThinking()

	// One-shot: staged image is consumed by this submission, win or lose.
	c.staged = nil

	if err != nil {
		if errors.Is(err, assistant.ErrEmptySubmission) {
			fmt.Fprintln(c.out, "Type a question or stage an image first.")
			return false
		}
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return false
	}

	c.printAssistant(res.Answer)
	return false
}

func (c *CLI) stageImage(path string) {
	if path == "" {
		fmt.Fprintln(c.out, "Usage: /image <path-to-jpeg-or-png>")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(c.out, "Cannot read %s: %v\n", path, err)
		return
	}
	if c.staged != nil {
		fmt.Fprintf(c.out, "Replacing staged image %s.\n", c.staged.name)
	}
	c.staged = &stagedImage{bytes: data, name: filepath.Base(path)}
	fmt.Fprintf(c.out, "Staged %s (%d bytes). It will be sent with your next message; press Enter to send it alone.\n",
		c.staged.name, len(data))
}

func (c *CLI) printAssistant(text string) {
	fmt.Fprintln(c.out, "\r\033[K")
	fmt.Fprintln(c.out, "--- Agri-Assistant ---")
	fmt.Fprintln(c.out, text)
	fmt.Fprintln(c.out, "----------------------")
}

func (c *CLI) startThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	go func(stop chan struct{}) {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s Thinking...", frames[i%len(frames)])
				i++
			}
		}
	}(c.thinkStop)
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if !c.thinking {
		return
	}
	c.thinking = false
	close(c.thinkStop)
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }
