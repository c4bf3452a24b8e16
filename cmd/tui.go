package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/tasks"
	"github.com/desertthunder/recordkit/internal/ui"
)

// TUI launches the interactive terminal UI for browsing notes.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	if err := r.open(); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.notes, r.engine, tasks.NewRetentionPolicy(r.config.Retention))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
