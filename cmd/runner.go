package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/recordkit/internal/controller"
	"github.com/desertthunder/recordkit/internal/models"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/store"
	"github.com/desertthunder/recordkit/internal/tasks"
)

// NoteController is the note controller the commands drive.
type NoteController = controller.Controller[models.Note, *models.NoteRecord]

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database is opened on first use so commands like setup config run without one.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	db         *sqlx.DB
	container  *store.Container
	ownsStore  bool
	notes      *NoteController
	engine     *tasks.NoteEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Container  *store.Container // Container overrides the configured database
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		container:  opts.Container,
	}
}

// SetLogger replaces the runner's logger. Call before the store is opened.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// SetConfig replaces the runner's configuration. Call before the store is opened.
func (r *Runner) SetConfig(config *shared.Config, path string) {
	r.config = config
	r.configPath = path
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, notesCommand, serveCommand, retentionCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// open connects to the configured database, migrates it and builds the note controller.
func (r *Runner) open() error {
	if r.notes != nil {
		return nil
	}

	if r.container == nil {
		dbConfig := r.config.Database
		db, err := shared.NewDatabase(dbConfig.Driver, dbConfig.DSN)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDatabaseUnavailable, err)
		}
		shared.ConfigureDatabase(db, dbConfig.DSN, dbConfig.MaxOpenConns, dbConfig.MaxIdleConns)

		applied, err := shared.RunMigrations(db)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			r.logger.Info("applied migrations", "count", applied)
		}

		container, err := store.NewContainer(db, nil,
			store.WithLogger(r.logger.WithPrefix("store")),
			store.WithEntities(models.NoteEntity),
		)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to create store: %w", err)
		}

		r.db = db
		r.container = container
		r.ownsStore = true
	}

	queue, err := controller.ParseOperatingQueue(r.config.Database.OperatingQueue)
	if err != nil {
		return err
	}

	notes, err := controller.New[models.Note, *models.NoteRecord](r.container,
		controller.WithOperatingQueue(queue),
		controller.WithLogger(r.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create note controller: %w", err)
	}

	r.notes = notes
	r.engine = tasks.NewNoteEngine(notes, r.logger)
	r.logger.Debug("store opened", "driver", r.container.DB().DriverName(), "queue", queue)
	return nil
}

// Close releases the note controller and, when the runner opened it, the database.
func (r *Runner) Close() error {
	var errs []error
	if r.notes != nil {
		errs = append(errs, r.notes.Close())
		r.notes = nil
		r.engine = nil
	}
	if r.ownsStore {
		errs = append(errs, r.container.Close(), r.db.Close())
		r.container = nil
		r.db = nil
		r.ownsStore = false
	}
	return errors.Join(errs...)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
