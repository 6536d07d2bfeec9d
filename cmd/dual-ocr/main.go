package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/dual-ocr/internal/config"
	"github.com/ironsheep/dual-ocr/internal/imaging"
	"github.com/ironsheep/dual-ocr/internal/mcp"
	"github.com/ironsheep/dual-ocr/internal/ocr"
	"github.com/ironsheep/dual-ocr/internal/ocr/tesseract"
	"github.com/ironsheep/dual-ocr/internal/recognizer"
	"github.com/ironsheep/dual-ocr/internal/server"
	"github.com/ironsheep/dual-ocr/internal/telegram"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	args := os.Args[1:]
	mcpMode := false
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Printf("dual-ocr %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage(os.Stdout)
			return
		case "mcp":
			mcpMode = true
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("dual-ocr", flag.ExitOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { usage(os.Stderr) }
	configPath := fs.String("config", "", "path to a YAML config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dual-ocr: %v\n", err)
		os.Exit(2)
	}

	// stdout carries the protocol in MCP mode.
	logOut := io.Writer(os.Stdout)
	if mcpMode {
		logOut = os.Stderr
	}
	logger := setupLogger(cfg.Env, cfg.LogLevel, logOut)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := newRecognizer(cfg, logger)
	logger.Info("starting dual-ocr",
		"version", Version,
		"commit", GitCommit,
		"engine", svc.EngineVersion(),
		"language", cfg.Language,
		"workers", svc.Workers(),
		"pass_timeout", cfg.PassTimeout,
	)

	if mcpMode {
		err = mcp.New(svc, Version, logger).Run(ctx)
	} else {
		err = serve(ctx, cfg, svc, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func newRecognizer(cfg *config.Config, logger *slog.Logger) *recognizer.Service {
	fetcher := imaging.NewHTTPFetcher(cfg.FetchTimeout, int64(cfg.MaxImageBytes))
	normalizer := imaging.NewNormalizer(fetcher, cfg.MaxImageBytes).WithMaxPixels(cfg.MaxImagePixels)
	pool := ocr.NewPool(tesseract.New(cfg.TessdataPrefix), cfg.Language, cfg.WorkerCount(), logger)
	orch := ocr.NewOrchestrator(pool, cfg.PassTimeout, logger)
	return recognizer.New(normalizer, orch, logger)
}

// serve runs the HTTP server and, when a token is configured, the Telegram
// bot. Either one failing stops both.
func serve(ctx context.Context, cfg *config.Config, svc *recognizer.Service, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(svc, server.Options{
		Addr:           cfg.Addr(),
		MaxBodyBytes:   cfg.MaxBodyBytes,
		MaxConnections: cfg.MaxConnections,
		AllowedOrigins: cfg.AllowedOrigins,
		// Dual mode runs two passes that may queue behind each other.
		WriteTimeout: 2*cfg.PassTimeout + cfg.FetchTimeout,
	}, logger.With("transport", "http"))
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.TelegramToken != "" {
		g.Go(func() error {
			return telegram.Run(ctx, cfg.TelegramToken, svc, logger.With("transport", "telegram"))
		})
	} else {
		logger.Info("telegram bot disabled", "reason", "TELEGRAM_BOT_TOKEN not set")
	}

	return g.Wait()
}

func setupLogger(env, level string, w io.Writer) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if env == config.EnvDev {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "dual-ocr - OCR service with letter and number passes")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  dual-ocr [-config file]        Serve HTTP (and Telegram when configured)")
	fmt.Fprintln(w, "  dual-ocr mcp [-config file]    Serve MCP over stdin/stdout")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -config file     YAML config file (default $CONFIG_PATH)")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	config.Usage(w)
}
