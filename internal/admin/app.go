// Package admin implements the operator CLI: applying schema migrations and
// seeding accounts through the same credential service the form uses.
package admin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/cryptox"
	"github.com/dmitrijs2005/formauth/internal/dbx"
	"github.com/dmitrijs2005/formauth/internal/logging"
	"github.com/dmitrijs2005/formauth/internal/server/config"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/formauth/internal/server/services"
	"github.com/dmitrijs2005/formauth/internal/server/sessions"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate   apply database migrations
  adduser   create an account interactively
  help      show this message

flags are the same as for the server (-b driver, -d dsn, -p algorithm, -c config.json, -env-file .env)`

var ErrUnknownCommand = errors.New("unknown command")

// getPassword is a test seam for GetPassword.
var getPassword = GetPassword

type App struct {
	config *config.Config
	logger logging.Logger
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(cfg *config.Config, in io.Reader, out io.Writer) *App {
	return &App{
		config: cfg,
		logger: logging.NewLogger(out, cfg.LogLevel, "text"),
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Run executes the subcommand named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUnknownCommand
	}

	switch args[0] {
	case "migrate":
		return a.Migrate(ctx)
	case "adduser":
		return a.AddUser(ctx)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, args[0])
	}
}

// Migrate applies all pending migrations for the configured database.
func (a *App) Migrate(ctx context.Context) error {
	if a.config.DatabaseDriver == config.DriverMemory {
		return errors.New("the memory driver has no schema to migrate")
	}

	db, err := dbx.Open(ctx, a.config.DatabaseDriver, a.config.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm, err := repomanager.NewRepositoryManager(a.config.DatabaseDriver)
	if err != nil {
		return err
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	a.logger.Info(ctx, "migrations applied", "driver", a.config.DatabaseDriver)
	return nil
}

// AddUser prompts for an account and registers it. Migrations are applied
// first so a fresh database works.
func (a *App) AddUser(ctx context.Context) error {
	if a.config.DatabaseDriver == config.DriverMemory {
		return errors.New("the memory driver does not persist accounts")
	}

	username, err := GetSimpleText(a.in, "Username", a.out)
	if err != nil {
		return err
	}
	fullName, err := GetSimpleText(a.in, "Full name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return errors.New("passwords do not match")
	}

	db, err := dbx.Open(ctx, a.config.DatabaseDriver, a.config.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm, err := repomanager.NewRepositoryManager(a.config.DatabaseDriver)
	if err != nil {
		return err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	hasher, err := cryptox.NewHasher(a.config.PasswordHashAlgorithm, a.config.BcryptCost)
	if err != nil {
		return err
	}

	// registration never opens a session
	svc, err := services.NewCredentialService(rm.Users(db), sessions.NewMemoryManager(a.config.SessionTTL), hasher, a.logger, a.config)
	if err != nil {
		return err
	}

	res, err := svc.Register(ctx, username, string(password), fullName)
	if err != nil {
		var f *services.Failure
		if errors.As(err, &f) {
			fmt.Fprintln(a.out, f.Message)
		}
		return err
	}

	fmt.Fprintln(a.out, res.Message)
	return nil
}
