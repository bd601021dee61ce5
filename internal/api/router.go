// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package api serves cup records and QR codes over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cupsmanager/cupqr/internal/cups"
)

// Defaults for Config.
const (
	DefaultQRSize  = 200
	DefaultMaxBody = 10 << 20
)

// Config configures the router.
type Config struct {
	Store *cups.Store

	// Admin credentials for changing cups.  AdminHash is a bcrypt
	// hash.  If empty, changes are refused.
	AdminUser string
	AdminHash []byte

	Logger  *slog.Logger
	QRSize  int   // minimum SVG side in pixels
	MaxBody int64 // largest accepted upload in bytes
}

type server struct {
	Config
}

// NewRouter returns the service routes.
func NewRouter(cfg Config) *mux.Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = DefaultQRSize
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	s := &server{cfg}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/cups", s.listCups).Methods("GET")
	r.Handle("/cups", s.admin(s.createCup)).Methods("POST")
	r.HandleFunc("/cups/{id}", s.getCup).Methods("GET")
	r.Handle("/cups/{id}", s.admin(s.updateCup)).Methods("PUT")
	r.Handle("/cups/{id}", s.admin(s.deleteCup)).Methods("DELETE")
	r.HandleFunc("/cups/{id}/qr.svg", s.cupQR).Methods("GET")
	r.HandleFunc("/qr", s.generate).Methods("GET")
	r.HandleFunc("/scan", s.scan).Methods("POST")
	return r
}

// statusWriter records the response status.
type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		level := slog.LevelInfo
		if sw.status >= 500 {
			level = slog.LevelError
		}
		s.Logger.LogAttrs(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Int("bytes", sw.n),
			slog.Duration("duration", time.Since(start)))
	})
}
