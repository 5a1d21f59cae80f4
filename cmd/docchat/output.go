package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// errOut receives status and diagnostic lines; command results go to stdout.
var errOut io.Writer = color.Error

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	stepColor    = color.New(color.FgCyan)
	labelColor   = color.New(color.Bold)
)

func printSuccess(format string, args ...any) {
	successColor.Fprintln(errOut, "✓ "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	errorColor.Fprintln(errOut, "✗ "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	warningColor.Fprintln(errOut, "⚠ "+fmt.Sprintf(format, args...))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(errOut, "  %s %s\n", labelColor.Sprint(label+":"), fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	stepColor.Fprintln(errOut, "→ "+fmt.Sprintf(format, args...))
}
