// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Qrd serves cup records, their QR codes and a QR scanner over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pborman/getopt/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/cupsmanager/cupqr/internal/api"
	"github.com/cupsmanager/cupqr/internal/cups"
)

var g = struct {
	addr    string // listen address
	store   string // cup store file
	envFile string // dotenv file
	verbose bool   // debug logging
}{
	addr:    ":8080",
	store:   "cups.json",
	envFile: ".env",
}

type opt func()

func (opt) String() string                    { return "" }
func (o opt) Set(string, getopt.Option) error { o(); return nil }

func help() {
	getopt.PrintUsage(os.Stdout)
	os.Exit(0)
}

func parseFlags() {
	getopt.Flag(opt(help), 'h', "show this help").SetFlag()
	getopt.Flag(&g.addr, 'a', "listen address; "+
		"overrides CUPQR_ADDR", "addr")
	getopt.Flag(&g.store, 'f', "cup store file; "+
		"overrides CUPQR_STORE", "file")
	getopt.Flag(&g.envFile, 'e', "environment file, "+
		"loaded if present", "file")
	getopt.Flag(&g.verbose, 'v', "log debug messages; "+
		"overrides LOG_LEVEL")
	getopt.Parse()
	if getopt.NArgs() != 0 {
		getopt.Usage()
		os.Exit(2)
	}
}

// env returns the value of the environment variable key, or def.
func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func logLevel() (slog.Level, error) {
	if g.verbose {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	err := l.UnmarshalText([]byte(env("LOG_LEVEL", "info")))
	return l, err
}

// adminHash returns the bcrypt hash of the admin password, from
// ADMIN_PASSWORD_HASH or else hashed from ADMIN_PASSWORD.
func adminHash(log *slog.Logger) ([]byte, error) {
	if h := os.Getenv("ADMIN_PASSWORD_HASH"); h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err)
		}
		return []byte(h), nil
	}
	pw := os.Getenv("ADMIN_PASSWORD")
	if pw == "" {
		log.Warn("ADMIN_PASSWORD not set, using the default password")
		pw = "password"
	}
	return bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
}

func main() {
	parseFlags()
	if err := godotenv.Load(g.envFile); err != nil &&
		!errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "qrd:", err)
		os.Exit(1)
	}
	if !getopt.IsSet('a') {
		g.addr = env("CUPQR_ADDR", g.addr)
	}
	if !getopt.IsSet('f') {
		g.store = env("CUPQR_STORE", g.store)
	}
	level, err := logLevel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "qrd: LOG_LEVEL:", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	store, err := cups.Open(g.store)
	if err != nil {
		return err
	}
	hash, err := adminHash(log)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr: g.addr,
		Handler: api.NewRouter(api.Config{
			Store:     store,
			AdminUser: strings.TrimSpace(env("ADMIN_USER", "admin")),
			AdminHash: hash,
			Logger:    log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", g.addr, "store", g.store,
			"cups", len(store.List()))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
