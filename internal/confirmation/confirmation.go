package confirmation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "dbdump/internal/errors"
)

// Confirmer asks the operator a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// Prompter reads answers line by line from an input stream
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter; nil streams mean stdin and stdout
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{in: bufio.NewReader(in), out: out}
}

type answer struct {
	text string
	err  error
}

// Confirm prints question and waits for an answer. An empty answer, or end
// of input without one, selects the default. Anything that is not a yes or
// a no asks again. Cancelling ctx aborts the prompt with an interruption error.
func (p *Prompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	for {
		fmt.Fprint(p.out, question+" ")

		answers := make(chan answer, 1)
		go func() {
			line, err := p.in.ReadString('\n')
			answers <- answer{text: line, err: err}
		}()

		var a answer
		select {
		case <-ctx.Done():
			fmt.Fprintln(p.out)
			return false, apperrors.NewAppError(apperrors.ErrorTypeInterruption, "confirmation was interrupted", ctx.Err())
		case a = <-answers:
		}

		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, fmt.Errorf("failed to read answer: %w", a.err)
		}

		yes, ok := parseAnswer(a.text, defaultYes)
		if ok {
			return yes, nil
		}
		if a.err != nil {
			// input ended on an unparseable answer
			fmt.Fprintln(p.out)
			return defaultYes, nil
		}
		fmt.Fprintf(p.out, "Please answer yes or no.\n")
	}
}

func parseAnswer(input string, defaultYes bool) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return defaultYes, true
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// AutoConfirmer answers every question with the same value
type AutoConfirmer bool

func (a AutoConfirmer) Confirm(context.Context, string, bool) (bool, error) {
	return bool(a), nil
}
