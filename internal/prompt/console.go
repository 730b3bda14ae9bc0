package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/audio.capture/internal/capture"
	"github.com/banshee-data/audio.capture/internal/monitoring"
)

// ErrInputClosed is returned when the console input ends.
var ErrInputClosed = errors.New("console input closed")

type line struct {
	text string
	err  error
}

// Console asks questions on out and reads answers from in, one per line.
// Reads run on a background goroutine so a blocked read can be abandoned
// when the context is cancelled.
type Console struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan line
}

// NewConsole returns a console reading from in and writing to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

func (c *Console) start() {
	c.lines = make(chan line)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			c.lines <- line{text: sc.Text()}
		}
		err := sc.Err()
		if err == nil {
			err = ErrInputClosed
		}
		c.lines <- line{err: err}
		close(c.lines)
	}()
}

// ReadLine prints question and waits for one line of input.
func (c *Console) ReadLine(ctx context.Context, question string) (string, error) {
	c.once.Do(c.start)
	fmt.Fprint(c.out, question)
	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return l.text, l.err
	}
}

// Decide implements capture.Decider. An unrecognised answer is reported as
// DecisionNone so the session asks again.
func (c *Console) Decide(ctx context.Context, s capture.Summary) (capture.Decision, error) {
	q := fmt.Sprintf("\nOut of range: %d frames (%s) recorded. Save the recording? (Y/N): ",
		s.Frames, s.Duration().Round(10*time.Millisecond))
	answer, err := c.ReadLine(ctx, q)
	if err != nil {
		return capture.DecisionNone, err
	}
	d, ok := ParseDecision(answer)
	if !ok {
		fmt.Fprintf(c.out, "Please answer Y or N, not %q.\n", answer)
		monitoring.Logf("prompt: rejected save/discard answer %q", answer)
		return capture.DecisionNone, nil
	}
	if d == capture.DecisionDiscard {
		fmt.Fprintln(c.out, "Recording discarded. Waiting for the next object in range...")
	}
	return d, nil
}

// Select shows a numbered menu and returns the 0-based index of the chosen
// option, asking again until the answer is valid.
func (c *Console) Select(ctx context.Context, title string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errors.New("menu has no options")
	}
	fmt.Fprintf(c.out, "\n%s\n", title)
	for i, o := range options {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, o)
	}
	for {
		answer, err := c.ReadLine(ctx, "Please select an option: ")
		if err != nil {
			return 0, err
		}
		if i, ok := ParseChoice(answer, len(options)); ok {
			return i, nil
		}
		fmt.Fprintf(c.out, "Invalid option %q: enter a number from 1 to %d.\n", answer, len(options))
	}
}

// Confirm asks a yes/no question until it gets a recognisable answer.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		answer, err := c.ReadLine(ctx, question)
		if err != nil {
			return false, err
		}
		if yes, ok := ParseYesNo(answer); ok {
			return yes, nil
		}
		fmt.Fprintf(c.out, "Please answer Y or N, not %q.\n", answer)
	}
}

// AskDuration asks for a recording length until a positive one is given.
func (c *Console) AskDuration(ctx context.Context, question string) (time.Duration, error) {
	for {
		answer, err := c.ReadLine(ctx, question)
		if err != nil {
			return 0, err
		}
		if d, ok := ParseSeconds(answer); ok {
			return d, nil
		}
		fmt.Fprintf(c.out, "Invalid length %q: enter a positive number of seconds.\n", answer)
	}
}
