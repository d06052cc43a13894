// Package resolver decides which value to keep when the stored value was
// changed from an external source.
package resolver

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/saver"
)

// Policy names accepted by ForPolicy.
const (
	PolicyPrompt = "prompt"
	PolicyMemory = "memory"
	PolicyFile   = "file"
)

// ErrAborted is returned when the user cancelled the question.
var ErrAborted = errors.New("resolution aborted")

const question = `There seem to be changes from an external source.
Would you like to keep these changes? This overwrites the changes in memory.`

// KeepMemory resolves a divergence in favor of the value in memory.
func KeepMemory[T saver.Saver[T]](primary, _ T) (T, error) {
	return primary.Copy(), nil
}

// KeepFile resolves a divergence in favor of the stored value.
func KeepFile[T saver.Saver[T]](_, secondary T) (T, error) {
	return secondary.Copy(), nil
}

// LineReader reads a line of user input.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// Prompt asks the user on a terminal.
type Prompt struct {
	logger *log.Logger
	reader LineReader
	out    io.Writer
}

// NewPrompt returns a prompt reading answers from reader and printing
// questions to out.
func NewPrompt(logger *log.Logger, reader LineReader, out io.Writer) *Prompt {
	return &Prompt{
		logger: logger,
		reader: reader,
		out:    out,
	}
}

// NewTerminal returns a prompt on the terminal of the process. The returned
// closer releases the terminal.
func NewTerminal(logger *log.Logger) (*Prompt, io.Closer, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "abort",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing readline: %w", err)
	}
	return NewPrompt(logger, rl, rl.Stdout()), rl, nil
}

// Confirm asks a yes or no question until it gets a valid answer. An empty
// answer means no.
func (p *Prompt) Confirm(question string) (bool, error) {
	_, _ = fmt.Fprintln(p.out, question)
	p.reader.SetPrompt("[y/N] ")

	for {
		line, err := p.reader.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return false, errs.E(errs.Usage, "asking for confirmation", ErrAborted)
			}
			return false, fmt.Errorf("reading answer: %w", err)
		}

		answer, ok := parseAnswer(line)
		if ok {
			return answer, nil
		}
		p.logger.Warn("Invalid answer, please answer yes or no", log.String("answer", line))
	}
}

func parseAnswer(line string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, true
	case "", "n", "no":
		return false, true
	default:
		return false, false
	}
}

// Ask returns a resolver that lets the user decide. Keeping the external
// changes returns a copy of secondary, otherwise a copy of primary.
func Ask[T saver.Saver[T]](p *Prompt) saver.Resolver[T] {
	return func(primary, secondary T) (T, error) {
		keepExternal, err := p.Confirm(question)
		if err != nil {
			var zero T
			return zero, err
		}
		if keepExternal {
			return secondary.Copy(), nil
		}
		return primary.Copy(), nil
	}
}

// ForPolicy returns the non interactive resolver for a policy name.
func ForPolicy[T saver.Saver[T]](policy string) (saver.Resolver[T], error) {
	switch strings.ToLower(policy) {
	case PolicyMemory:
		return KeepMemory[T], nil
	case PolicyFile:
		return KeepFile[T], nil
	default:
		return nil, errs.Errorf(errs.Usage, "selecting resolver", "unsupported resolve policy '%s'", policy)
	}
}
