package main

import "github.com/fatih/color"

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	skipMark = color.New(color.FgYellow).Sprint("-")
)

func success(msg string) string {
	return okMark + " " + msg
}

func skipped(msg string) string {
	return skipMark + " " + color.New(color.Faint).Sprint(msg)
}

func failure(msg string) string {
	return color.New(color.FgRed).Sprint("✗ " + msg)
}

func highlight(value string) string {
	return color.New(color.FgCyan).Sprint(value)
}
