package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"fyne.io/fyne/v2/app"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
	"github.com/tartampluch/go-fiscalcode/internal/server"
	"github.com/tartampluch/go-fiscalcode/internal/ui"
)

func main() {
	// os.Exit skips defers, so all cleanup lives in runMain.
	os.Exit(runMain(os.Args[1:]))
}

// options are the parsed command-line flags.
type options struct {
	version  bool
	debug    bool
	headless bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	fs.BoolVar(&opts.version, config.FlagVersion, false, config.FlagDescVersion)
	fs.BoolVar(&opts.debug, config.FlagDebug, false, config.FlagDescDebug)
	fs.BoolVar(&opts.headless, config.FlagHeadless, false, config.FlagDescHeadless)
	err := fs.Parse(args)
	return opts, err
}

// runMain wires logging and signals around the selected mode and maps the
// outcome to an exit code.
func runMain(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		return config.ExitCodeError
	}
	if opts.version {
		fmt.Printf(config.MsgVersionOutput, config.AppName, config.Version, runtime.GOOS, runtime.GOARCH)
		return config.ExitCodeSuccess
	}

	if closer := setupLogging(opts.debug); closer != nil {
		defer func() { _ = closer.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logStartupInfo(opts)

	mode := runGUI
	if opts.headless {
		mode = runHeadless
	}
	if err := mode(ctx); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// runGUI opens the desktop form. The local API listens on the saved port.
func runGUI(ctx context.Context) error {
	a := app.NewWithID(config.AppID)
	prefs := a.Preferences()
	prefs.SetString(config.PrefLastRun, config.Version)

	srv := server.NewAPIServer(prefs.StringWithFallback(config.PrefServerPort, config.DefaultPort))
	gui := ui.NewGoFiscalCodeApp(a, ctx, srv, engine.NewHTTPFetcher())

	go func() {
		<-ctx.Done()
		slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
		a.Quit()
	}()

	// Blocks until the main window closes.
	gui.Run()
	return nil
}

func logStartupInfo(opts options) {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyMode, modeName(opts),
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

func modeName(opts options) string {
	if opts.headless {
		return config.FlagHeadless
	}
	return config.ModeGUI
}

// setupLogging installs a JSON slog handler writing to stdout and, when the
// cache directory is usable, to a log file truncated on each start.
func setupLogging(debug bool) io.Closer {
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	if path, err := logFilePath(); err == nil {
		f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err != nil {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, path, err)
		} else {
			writers = append(writers, f)
			logFile = f
		}
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	slog.SetDefault(slog.New(handler))

	if logFile == nil {
		return nil
	}
	return logFile
}

// logFilePath returns <user cache dir>/<AppID>/app.log, creating the
// directory owner-only.
func logFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}
	dir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(dir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}
	return filepath.Join(dir, config.LogFileName), nil
}
