// Command themis scores, gates and ranks initiatives from the command line
// and drives the LLM-backed generation tasks.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ahrav/go-themis/internal/activity"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitBudget is returned when a call was refused by the token budget.
	ExitBudget = 3
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var appErr interface{ Type() string }
	if errors.As(err, &appErr) && appErr.Type() == activity.TypeBudget {
		return ExitBudget
	}
	return ExitError
}
