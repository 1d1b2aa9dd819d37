package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"vidmentor/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color text.Color
}{
	statusInfo:  {"INFO", text.FgBlue},
	statusOK:    {"OK", text.FgGreen},
	statusWarn:  {"WARN", text.FgYellow},
	statusError: {"ERROR", text.FgRed},
}

// statusLabelWidth keeps the bracketed states aligned under each other.
const statusLabelWidth = 20

// statusLine renders "  label:  [STATE] message".
func statusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	state := "[" + style.label + "]"
	if message != "" {
		state += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", state)
	if colorize {
		return style.color.Sprint(line)
	}
	return line
}

func checkLine(result preflight.Result, failKind statusKind, colorize bool) string {
	kind := failKind
	if result.Passed {
		kind = statusOK
	}
	return statusLine(result.Name, kind, result.Detail, colorize)
}

func writeSectionHeader(w io.Writer, title string, colorize bool) {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if colorize {
		heading, rule = text.FgBlue.Sprint(heading), text.FgBlue.Sprint(rule)
	}
	fmt.Fprintln(w, heading)
	fmt.Fprintln(w, rule)
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
