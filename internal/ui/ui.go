// Package ui holds the interactive confirmation gate that guards
// privileged trust-store mutations. The default gate prompts on the
// terminal; callers can inject their own implementation or suppress
// prompting entirely.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ConfirmFunc asks the user to approve an action described by prompt and
// reports the decision.
type ConfirmFunc func(prompt string) bool

// Gate decides whether privileged actions may proceed.
type Gate struct {
	confirm ConfirmFunc
	assume  bool
}

// NewGate returns a gate using the given confirm function. A nil confirm
// falls back to the terminal prompt.
func NewGate(confirm ConfirmFunc) *Gate {
	if confirm == nil {
		confirm = TerminalConfirm(os.Stdin, os.Stdout)
	}
	return &Gate{confirm: confirm}
}

// AssumeYes returns a gate that approves everything without prompting.
func AssumeYes() *Gate {
	return &Gate{assume: true}
}

// Confirm asks for approval of the described action.
func (g *Gate) Confirm(prompt string) bool {
	if g.assume {
		return true
	}
	return g.confirm(prompt)
}

// TerminalConfirm returns a ConfirmFunc that writes a y/N prompt to w and
// reads the answer from r.
func TerminalConfirm(r io.Reader, w io.Writer) ConfirmFunc {
	reader := bufio.NewReader(r)
	return func(prompt string) bool {
		fmt.Fprintf(w, "%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
