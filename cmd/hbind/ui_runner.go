package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"hbind/internal/pipeline"
	"hbind/internal/ui"
)

type runOutcome struct {
	result *pipeline.Result
	err    error
}

// runWithUI runs the pipeline while a progress view draws on stderr.
// Ctrl+C in the view cancels the run.
func runWithUI(ctx context.Context, title string, req pipeline.Request) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 2 события на стадию, буфера хватает даже если view уже закрыт
	events := make(chan pipeline.Event, 4*len(pipeline.Stages()))
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		req.Progress = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Run(ctx, req)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, pipeline.Stages(), events, cancel)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if outcome.err == nil && uiErr != nil && ctx.Err() == nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
