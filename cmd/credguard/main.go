// Command credguard manages stored credentials and runs authentication
// attempts against them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/credguard/internal/config"
	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/model"
	"github.com/and161185/credguard/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// Exit codes.
const (
	exitOK         = 0
	exitErr        = 1
	exitUsage      = 2
	exitAuthFailed = 3
)

const usageText = `credguard
Usage:
  credguard [-store postgres|sqlite|redis] [-dsn DSN] [-debug] <cmd> [args]

Commands:
  version
  migrate
  create  -u <username> -p <password>
  auth    -u <username> -p <password>   (exit 3 unless accepted)
  passwd  -u <username> -p <new-password>
  unlock  -u <username>
  status  -u <username>

Settings are read from CREDGUARD_* environment variables and .env.
`

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("credguard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usageText) }
	store := fs.String("store", "", "storage backend (overrides CREDGUARD_STORE)")
	dsn := fs.String("dsn", "", "postgres DSN, sqlite path or redis address for the selected store")
	debug := fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return exitUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "credguard %s (%s)\n", version, buildDate)
		return exitOK
	}

	overrides := map[string]string{"STORE": *store, config.OverrideDSN: *dsn}
	if *debug {
		overrides["LOG_LEVEL"] = "debug"
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return fail(stderr, err)
	}

	logger := newLogger(cfg.Level(), stderr)
	defer func() { _ = logger.Sync() }()
	logger.Debug("starting", zap.String("version", version), zap.String("cmd", cmd), zap.String("store", cfg.Store))

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	repo, closeRepo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fail(stderr, err)
	}
	defer closeRepo()

	if cmd == "migrate" {
		fmt.Fprintf(stdout, "%s store is up to date\n", cfg.Store)
		return exitOK
	}

	pub, closePub, err := openPublisher(cfg, logger)
	if err != nil {
		return fail(stderr, err)
	}
	defer closePub()

	creds, auth, err := service.New(repo, cfg.Options(), pub, logger)
	if err != nil {
		return fail(stderr, err)
	}

	sub := flag.NewFlagSet(cmd, flag.ContinueOnError)
	sub.SetOutput(stderr)
	user := sub.String("u", "", "username")
	pass := sub.String("p", "", "password")
	if err := sub.Parse(rest); err != nil {
		return exitUsage
	}
	if *user == "" {
		fmt.Fprintln(stderr, "need -u")
		return exitUsage
	}
	needPassword := cmd == "create" || cmd == "auth" || cmd == "passwd"
	if needPassword && *pass == "" {
		fmt.Fprintln(stderr, "need -u and -p")
		return exitUsage
	}
	f := model.ByUsername(*user)

	switch cmd {
	case "create":
		rec, err := creds.Create(ctx, *user, *pass)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, rec.ID.String())

	case "auth":
		res, err := auth.Authenticate(ctx, f, *pass)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, res.Outcome)
		if res.Record != nil {
			printState(stdout, res.Record, time.Now())
		}
		if !res.Authenticated() {
			return exitAuthFailed
		}

	case "passwd":
		if err := creds.ChangePassword(ctx, f, *pass); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, "ok")

	case "unlock":
		if err := creds.Unlock(ctx, f); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, "ok")

	case "status":
		rec, err := creds.FindOne(ctx, f)
		if err != nil {
			return fail(stderr, err)
		}
		printState(stdout, rec, time.Now())

	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}
	return exitOK
}

func printState(w io.Writer, rec *model.Record, now time.Time) {
	fmt.Fprintf(w, "id:       %s\n", rec.ID)
	fmt.Fprintf(w, "attempts: %d\n", rec.AuthAttempts)
	if rec.IsLocked(now) {
		fmt.Fprintf(w, "locked:   until %s\n", rec.LockDeadline().UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "locked:   no")
	}
}

// newLogger writes JSON logs to w, or console logs at debug level.
func newLogger(level zapcore.Level, w io.Writer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	if level == zapcore.DebugLevel {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

func fail(w io.Writer, err error) int {
	fmt.Fprintln(w, "error:", err)
	switch {
	case errors.Is(err, errs.ErrValidation):
		return exitUsage
	default:
		return exitErr
	}
}
