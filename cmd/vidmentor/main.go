package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"vidmentor/internal/transport"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// Interrupted commands exit quietly.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, transport.UserMessage(err))
	}
	os.Exit(1)
}
