// Package cli provides terminal I/O, output formatting, and command
// dispatch for the parley dialogue engine.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI handles line-based terminal interaction with the player.
type CLI struct {
	Interp    *Interpreter
	In        io.Reader
	Out       io.Writer
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI reading stdin and writing stdout.
func New(interp *Interpreter) *CLI {
	return &CLI{
		Interp: interp,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

// Run shows the intro, then loops: prompt, input, dispatch, output. It
// returns nil when the input ends or the player quits, and ctx.Err() if ctx
// is cancelled while waiting for input.
func (c *CLI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.printLines(c.Interp.Intro())

	lines := c.readLines(ctx)
	for {
		c.print("> ")
		var raw string
		select {
		case <-ctx.Done():
			c.printLine("")
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				c.printLine("")
				return nil
			}
			raw = line
		}
		input := strings.TrimSpace(raw)
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		out, quit := c.Interp.Exec(input)
		c.printLines(out)
		if quit {
			return nil
		}
	}
}

// readLines scans c.In on its own goroutine so a blocked read does not hold
// up cancellation. The channel is closed at end of input.
func (c *CLI) readLines(ctx context.Context) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(c.In)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (c *CLI) printLines(lines []string) {
	for _, line := range lines {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}
