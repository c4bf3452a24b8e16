// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"
)

// filterFlags are shared by every command that narrows notes.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "pinned",
			Usage: "Only pinned notes (--pinned=false for unpinned)",
		},
		&cli.StringFlag{
			Name:    "search",
			Aliases: []string{"q"},
			Usage:   "Match a substring of the title or body",
		},
		&cli.StringFlag{
			Name:    "tag",
			Aliases: []string{"t"},
			Usage:   "Match notes carrying this tag",
		},
		&cli.DurationFlag{
			Name:  "older-than",
			Usage: "Match notes created more than this long ago (e.g. 720h)",
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func noteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "body",
			Aliases: []string{"b"},
			Usage:   "Note body",
		},
		&cli.StringSliceFlag{
			Name:    "tag",
			Aliases: []string{"t"},
			Usage:   "Tag the note (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "pinned",
			Usage: "Pin the note",
		},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "config",
				Usage: "Write a configuration file from the default template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (.toml, .yaml or .yml)",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// notesCommand handles note operations through the note controller.
func notesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "notes",
		Aliases: []string{"note", "n"},
		Usage:   "Create, query and remove notes",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Save a new note",
				ArgsUsage: "<title>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags:  append(noteFlags(), outputFlags()...),
				Action: r.NotesAdd,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List notes",
				Flags: append(append(filterFlags(),
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort key: title, created_at, updated_at, pinned",
					},
					&cli.BoolFlag{
						Name:  "asc",
						Usage: "Sort ascending",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of notes to return (0 for all)",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of notes to skip",
					},
				), outputFlags()...),
				Action: r.NotesList,
			},
			{
				Name:      "show",
				Usage:     "Show one note",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.NotesShow,
			},
			{
				Name:   "count",
				Usage:  "Count notes",
				Flags:  filterFlags(),
				Action: r.NotesCount,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete one note",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.NotesDelete,
			},
			{
				Name:  "purge",
				Usage: "Delete every note matching the filters",
				Flags: append(filterFlags(),
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Allow purging without filters",
					},
				),
				Action: r.NotesPurge,
			},
			{
				Name:      "replace",
				Usage:     "Replace a note, keeping its id and creation time",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: append(append(noteFlags(),
					&cli.StringFlag{
						Name:  "title",
						Usage: "New title",
					},
				), outputFlags()...),
				Action: r.NotesReplace,
			},
			{
				Name:  "export",
				Usage: "Export notes to a file",
				Flags: append(filterFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, markdown, text, json",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, or directory with --by-tag",
					},
					&cli.BoolFlag{
						Name:  "by-tag",
						Usage: "Write one file per tag",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent workers for --by-tag",
						Value: 4,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Files started per second for --by-tag (0 for unlimited)",
					},
				),
				Action: r.NotesExport,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the notes HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to bind (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the health endpoint in a browser",
			},
			&cli.BoolFlag{
				Name:  "no-retention",
				Usage: "Do not schedule the retention purge",
			},
		},
		Action: r.Serve,
	}
}

// retentionCommand runs the retention purge by hand.
func retentionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "retention",
		Usage: "Retention policy operations",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Purge notes older than the retention max age",
				Flags: append([]cli.Flag{
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "Override the configured max age",
					},
					&cli.BoolFlag{
						Name:  "keep-pinned",
						Usage: "Override whether pinned notes are kept",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Count matching notes without deleting them",
					},
				}, outputFlags()...),
				Action: r.RetentionRun,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive note management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for browsing notes",
		Action:  r.TUI,
	}
}
