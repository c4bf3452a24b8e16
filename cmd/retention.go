package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/recordkit/internal/tasks"
)

// RetentionRun purges notes older than the retention max age.
func (r *Runner) RetentionRun(ctx context.Context, cmd *cli.Command) error {
	policy := tasks.NewRetentionPolicy(r.config.Retention)
	if cmd.IsSet("max-age") {
		policy.MaxAge = cmd.Duration("max-age")
	}
	if cmd.IsSet("keep-pinned") {
		policy.KeepPinned = cmd.Bool("keep-pinned")
	}
	policy.DryRun = cmd.Bool("dry-run")

	if err := r.open(); err != nil {
		return err
	}

	result, err := r.engine.Purge(ctx, policy, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	title := "Retention Purge"
	if result.DryRun {
		title += " (dry run)"
	}
	r.writePlainHeader(title)
	r.writePlain("Cutoff:    %s\n", result.Cutoff.Local().Format(time.RFC3339))
	r.writePlain("Matched:   %d\n", result.Matched)
	r.writePlain("Deleted:   %d\n", result.Deleted)
	r.writePlain("Remaining: %d\n", result.Remaining)
	return nil
}
