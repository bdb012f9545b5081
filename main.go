package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/convertlab/secgate/config"
	"github.com/convertlab/secgate/internal/contentscan"
	"github.com/convertlab/secgate/internal/csrf"
	"github.com/convertlab/secgate/internal/filecheck"
	"github.com/convertlab/secgate/internal/handlers"
	"github.com/convertlab/secgate/internal/headers"
	"github.com/convertlab/secgate/internal/middlewares"
	"github.com/convertlab/secgate/internal/middlewares/sessions"
	"github.com/convertlab/secgate/internal/policy"
	"github.com/convertlab/secgate/internal/ratelimit"
	"github.com/convertlab/secgate/internal/store"
	"github.com/convertlab/secgate/params"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/memory/v2"
	fredis "github.com/gofiber/storage/redis/v3"
	"github.com/urfave/cli/v2"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "Upload security policy gateway"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func initLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

type stores struct {
	counters  store.CounterStore
	tokens    store.TokenStore
	blocklist store.Blocklist
	sessions  fiber.Storage
}

func buildStores(redisURL string) stores {
	if redisURL == "" {
		slog.Warn("No redis configured, using in-process stores (single instance only)")
		return stores{
			counters:  store.NewMemoryCounterStore(),
			tokens:    store.NewMemoryTokenStore(),
			blocklist: store.NewMemoryBlocklist(),
			sessions:  memory.New(memory.Config{GCInterval: 10 * time.Second}),
		}
	}
	storage := fredis.New(fredis.Config{URL: redisURL})
	rdb := storage.Conn()
	return stores{
		counters:  store.NewRedisCounterStore(rdb, "ratelimit:"),
		tokens:    store.NewRedisTokenStore(rdb, "token:"),
		blocklist: store.NewRedisBlocklist(rdb, "block:"),
		sessions:  storage,
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name), nil)
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}
	initLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, msg := range errs {
			slog.Error("Invalid configuration", "error", msg)
		}
		return errors.New("refusing to start with invalid configuration")
	}

	backends := buildStores(cfg.RedisURL)

	var externalScanner contentscan.MalwareScanner
	if cfg.ClamdAddr != "" {
		externalScanner = contentscan.NewClamdScanner(cfg.ClamdAddr)
	} else if cfg.Security.EnableMalwareScanning {
		slog.Warn("Malware scanning enabled but no clamd address configured, scans resolve via the fail policy", "failClosed", cfg.Security.FailClosed())
	}

	secCfg := &cfg.Security
	guard := csrf.New(secCfg, backends.tokens)
	engine := policy.NewEngine(secCfg,
		policy.BlocklistStage(backends.blocklist, secCfg),
		policy.CSRFStage(guard),
		policy.RateLimitStage(ratelimit.New(secCfg, backends.counters)),
		policy.FileValidationStage(filecheck.New(secCfg)),
		policy.ContentScanStage(contentscan.New(secCfg, externalScanner)),
	)

	sessionStore := session.New(session.Config{
		Storage:        backends.sessions,
		CookieHTTPOnly: true,
		CookieSecure:   cfg.Environment == "production",
	})

	router := fiber.New(fiber.Config{
		BodyLimit:    params.ServerBodyLimit,
		IdleTimeout:  params.ServerIdleTimeout,
		ReadTimeout:  params.ServerReadTimeout,
		WriteTimeout: params.ServerWriteTimeout,
		ErrorHandler: middlewares.ErrorHandler,
	})
	router.Use(sessions.SessionMiddleware(sessionStore))
	router.Use(headers.New(secCfg))
	router.Use(middlewares.PolicyMiddleware(engine, middlewares.ClassifyEndpoint))

	handler := handlers.NewGatewayHandler(guard)
	router.Get("/csrf", handler.GetCSRFToken)
	router.Post("/convert/:kind", handler.PostConvert)

	slog.Info("Starting secgate server", "address", cfg.ListenAddr, "environment", cfg.Environment, "level", cfg.Security.Level)
	return router.Listen(cfg.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
