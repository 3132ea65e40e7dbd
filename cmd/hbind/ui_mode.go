package main

import (
	"fmt"
	"os"
	"strings"
)

// progressMode is the value of --ui: whether generate draws the stage list
// while it runs.
type progressMode uint8

const (
	progressAuto progressMode = iota
	progressOn
	progressOff
)

var progressModes = map[string]progressMode{
	"":     progressAuto,
	"auto": progressAuto,
	"on":   progressOn,
	"off":  progressOff,
}

func readUIMode(value string) (progressMode, error) {
	if m, ok := progressModes[strings.ToLower(strings.TrimSpace(value))]; ok {
		return m, nil
	}
	return progressAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// draws reports whether the progress view runs. The view owns stderr; auto
// mode leaves it alone under --quiet and when stderr is a pipe or a dumb
// terminal.
func (m progressMode) draws(quiet bool) bool {
	switch m {
	case progressOn:
		return true
	case progressOff:
		return false
	}
	return !quiet && isTerminal(os.Stderr) && os.Getenv("TERM") != "dumb"
}
