package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"comfyctl/internal/queue"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

type statusStyle struct {
	badge string
	color string
}

var statusStyles = map[statusKind]statusStyle{
	statusInfo:  {badge: "[INFO]", color: ansiCyan},
	statusOK:    {badge: "[OK]", color: ansiGreen},
	statusWarn:  {badge: "[WARN]", color: ansiYellow},
	statusError: {badge: "[FAIL]", color: ansiRed},
}

// jobStyles maps ledger statuses onto display severities; unlisted
// statuses render as info.
var jobStyles = map[queue.Status]statusKind{
	queue.StatusCompleted: statusOK,
	queue.StatusFailed:    statusError,
	queue.StatusMissing:   statusWarn,
	queue.StatusDeleted:   statusWarn,
}

var titleCaser = cases.Title(language.English)

// renderStatusLine formats one doctor check as "  [OK]   Label   message".
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-6s %-16s %s", style.badge, label, message)
	return paint(strings.TrimRight(line, " "), style.color, colorize)
}

// statusLabel turns snake_case statuses and end reasons into titles.
func statusLabel(value string) string {
	words := strings.Fields(strings.ReplaceAll(value, "_", " "))
	if len(words) == 0 {
		return "Unknown"
	}
	return titleCaser.String(strings.Join(words, " "))
}

func renderJobStatus(status queue.Status, colorize bool) string {
	return paint(statusLabel(string(status)), statusStyles[jobStyles[status]].color, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	title = strings.ToUpper(strings.TrimSpace(title))
	return []string{paint(title, ansiCyan, colorize), strings.Repeat("=", len(title))}
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
