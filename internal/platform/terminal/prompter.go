// Package terminal is the human decision source: yes/no and press-enter
// prompts on the process terminal.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	// ErrInputDisabled is returned when terminal input is switched off
	ErrInputDisabled = errors.New("terminal input disabled")
	// ErrNotInteractive is returned when stdin is not a terminal and prompting is not forced
	ErrNotInteractive = errors.New("terminal input is not interactive")
)

// Options mirror the DISABLE_TERMINAL_INPUT and FORCE_INTERACTIVE switches
type Options struct {
	Disabled bool
	Force    bool
}

// Prompter asks questions on out and reads answers from in. Prompts are
// served one at a time; a caller waiting for its turn honours ctx.
type Prompter struct {
	in          io.Reader
	out         *termenv.Output
	disabled    bool
	interactive bool

	turn      chan struct{}
	startOnce sync.Once
	lines     chan inputLine
	readErr   error

	// set when a prompt gave up waiting; guarded by turn
	abandoned bool
}

type inputLine struct {
	text string
	at   time.Time
}

// NewPrompter builds a prompter. When in is an *os.File it is treated as
// interactive only if it is a terminal, unless opts.Force is set.
func NewPrompter(in io.Reader, out io.Writer, opts Options, outputOpts ...termenv.OutputOption) *Prompter {
	interactive := opts.Force
	if f, ok := in.(*os.File); ok {
		interactive = interactive || term.IsTerminal(int(f.Fd()))
	} else if in != nil {
		interactive = true
	}

	return &Prompter{
		in:          in,
		out:         termenv.NewOutput(out, outputOpts...),
		disabled:    opts.Disabled,
		interactive: interactive,
		turn:        make(chan struct{}, 1),
		lines:       make(chan inputLine),
	}
}

// Available reports whether prompts can currently be answered
func (p *Prompter) Available() error {
	if p.disabled {
		return ErrInputDisabled
	}
	if !p.interactive || p.in == nil {
		return ErrNotInteractive
	}
	return nil
}

// Confirm asks a yes/no question. An empty answer picks def; anything other
// than y/yes/n/no asks again.
func (p *Prompter) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if err := p.acquire(ctx); err != nil {
		return def, err
	}
	defer p.release()

	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	since := time.Now()
	p.render(message)
	for {
		fmt.Fprintf(p.out, "%s ", p.out.String("("+hint+"):").Faint())

		answer, err := p.readLine(ctx, since)
		if err != nil {
			return def, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, p.out.String("Please answer y/yes or n/no").Foreground(p.out.Color("3")))
	}
}

// Continue waits for a line of input, returning def for an empty line
func (p *Prompter) Continue(ctx context.Context, message string, def string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return def, err
	}
	defer p.release()

	since := time.Now()
	p.render(message)
	fmt.Fprintf(p.out, "%s ", p.out.String("Press Enter to continue...").Faint())

	answer, err := p.readLine(ctx, since)
	if err != nil {
		return def, err
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return def, nil
	}
	return answer, nil
}

func (p *Prompter) acquire(ctx context.Context) error {
	if err := p.Available(); err != nil {
		return err
	}
	select {
	case p.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Prompter) release() {
	<-p.turn
}

// render prints message with its first line as a highlighted title
func (p *Prompter) render(message string) {
	title, body, _ := strings.Cut(message, "\n")
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.out.String(title).Bold().Foreground(p.out.Color("6")))
	if body != "" {
		fmt.Fprintln(p.out, body)
	}
}

// readLine returns the next input line. A single reader goroutine owns in,
// so a prompt abandoned on timeout does not leave a competing reader behind.
// After an abandoned prompt, lines entered before since were meant for that
// prompt and are dropped instead of answering this one.
func (p *Prompter) readLine(ctx context.Context, since time.Time) (string, error) {
	p.startOnce.Do(func() {
		go func() {
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- inputLine{text: scanner.Text(), at: time.Now()}
			}
			p.readErr = scanner.Err()
			if p.readErr == nil {
				p.readErr = io.EOF
			}
			close(p.lines)
		}()
	})

	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return "", p.readErr
			}
			if p.abandoned && line.at.Before(since) {
				fmt.Fprintln(p.out, p.out.String("Ignoring input entered for an expired prompt").Faint())
				continue
			}
			p.abandoned = false
			return line.text, nil
		case <-ctx.Done():
			p.abandoned = true
			return "", ctx.Err()
		}
	}
}
