package terminal

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string, opts Options) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader(input), &out, opts, termenv.WithProfile(termenv.Ascii))
	return p, &out
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"yes", "y\n", false, true},
		{"yes long form", "YES\n", false, true},
		{"no", "n\n", true, false},
		{"empty takes default", "\n", true, true},
		{"invalid then no", "maybe\nno\n", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPrompter(tt.input, Options{})
			got, err := p.Confirm(context.Background(), "CREDIT PREPARE\n  Handle: H1", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "CREDIT PREPARE")
			assert.Contains(t, out.String(), "Handle: H1")
		})
	}
}

func TestPrompter_ConfirmReasksOnInvalidAnswer(t *testing.T) {
	p, out := newTestPrompter("maybe\ny\n", Options{})
	got, err := p.Confirm(context.Background(), "Accept?", false)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Contains(t, out.String(), "Please answer y/yes or n/no")
	assert.Contains(t, out.String(), "(y/N):")
}

func TestPrompter_Continue(t *testing.T) {
	p, _ := newTestPrompter("\nok\n", Options{})

	got, err := p.Continue(context.Background(), "CREDIT COMMIT", "continue")
	require.NoError(t, err)
	assert.Equal(t, "continue", got)

	got, err = p.Continue(context.Background(), "CREDIT COMMIT", "continue")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestPrompter_Unavailable(t *testing.T) {
	p, out := newTestPrompter("y\n", Options{Disabled: true})
	got, err := p.Confirm(context.Background(), "Accept?", true)
	assert.ErrorIs(t, err, ErrInputDisabled)
	assert.True(t, got)
	assert.Empty(t, out.String())

	var buf bytes.Buffer
	nilInput := NewPrompter(nil, &buf, Options{})
	_, err = nilInput.Continue(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrNotInteractive)
}

func TestPrompter_NonTerminalFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	var buf bytes.Buffer
	p := NewPrompter(f, &buf, Options{})
	assert.ErrorIs(t, p.Available(), ErrNotInteractive)

	forced := NewPrompter(f, &buf, Options{Force: true})
	assert.NoError(t, forced.Available())
}

func TestPrompter_EOF(t *testing.T) {
	p, _ := newTestPrompter("", Options{})
	got, err := p.Confirm(context.Background(), "Accept?", false)
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, got)

	// The reader stays closed for later prompts
	_, err = p.Continue(context.Background(), "again", "")
	assert.ErrorIs(t, err, io.EOF)
}

// promptOutput collects prompter output and reports each rendered answer hint
type promptOutput struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	prompts chan struct{}
}

func newPromptOutput() *promptOutput {
	return &promptOutput{prompts: make(chan struct{}, 16)}
}

func (o *promptOutput) Write(b []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if bytes.Contains(b, []byte("):")) {
		o.prompts <- struct{}{}
	}
	return o.buf.Write(b)
}

func (o *promptOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

func (o *promptOutput) waitPrompt(t *testing.T) {
	t.Helper()
	select {
	case <-o.prompts:
	case <-time.After(2 * time.Second):
		t.Fatal("prompt was not rendered")
	}
}

func newPipePrompter(t *testing.T) (*Prompter, *io.PipeWriter, *promptOutput) {
	t.Helper()
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	out := newPromptOutput()
	return NewPrompter(r, out, Options{}, termenv.WithProfile(termenv.Ascii)), w, out
}

func TestPrompter_Timeout(t *testing.T) {
	p, w, out := newPipePrompter(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := p.Confirm(ctx, "Accept?", true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, got)
	out.waitPrompt(t)

	type answer struct {
		ok  bool
		err error
	}
	done := make(chan answer, 1)
	go func() {
		ok, err := p.Confirm(context.Background(), "Accept?", true)
		done <- answer{ok, err}
	}()

	// An answer typed while the next prompt is showing belongs to it
	out.waitPrompt(t)
	_, err = w.Write([]byte("n\n"))
	require.NoError(t, err)

	select {
	case a := <-done:
		require.NoError(t, a.err)
		assert.False(t, a.ok)
	case <-time.After(2 * time.Second):
		t.Fatal("second prompt never returned")
	}
}

func TestPrompter_LateAnswerDoesNotCarryOver(t *testing.T) {
	p, w, out := newPipePrompter(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Confirm(ctx, "DEBIT PREPARE H1", false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	out.waitPrompt(t)

	// The operator answers the first prompt after it expired
	_, err = w.Write([]byte("y\n"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	got, err := p.Confirm(ctx2, "DEBIT PREPARE H2", false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, got, "answer for H1 must not accept H2")
	assert.Contains(t, out.String(), "Ignoring input entered for an expired prompt")
}
