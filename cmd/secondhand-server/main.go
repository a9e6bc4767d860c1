package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secondhand/internal/config"
	"secondhand/internal/http/handlers"
	applog "secondhand/internal/log"
	"secondhand/internal/repos"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		applog.Fail("config.invalid", err, nil)
		os.Exit(1)
	}

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			applog.Fail("log.file.open", err, map[string]any{"path": cfg.LogFile})
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	open := repos.OpenDB
	if !cfg.Seed {
		open = repos.OpenDBNoSeed
	}
	db, err := open(cfg.DBDSN)
	if err != nil {
		applog.Fail("db.open", err, nil)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// revoked token ids are useless once the token would have expired
	tokens := repos.NewTokenRepo(db)
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n, err := tokens.Purge(repos.Now()); err != nil {
					applog.Fail("tokens.purge", err, nil)
				} else if n > 0 {
					applog.Event("tokens.purge", map[string]any{"removed": n})
				}
			}
		}
	}()

	app := handlers.NewApp(db, cfg)
	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	applog.Event("server.start", map[string]any{"port": cfg.Port, "media_dir": cfg.MediaDir})
	if err := app.Listen(":" + cfg.Port); err != nil {
		applog.Fail("server.listen", err, nil)
		os.Exit(1)
	}
}
