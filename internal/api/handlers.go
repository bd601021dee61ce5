// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	qr "github.com/cupsmanager/cupqr"
	"github.com/cupsmanager/cupqr/internal/cups"
)

const maxQRSize = 4096

// errorBody is the JSON body of an error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// scanBody is the JSON body of a successful scan.
type scanBody struct {
	Payload string    `json:"payload"`
	Cup     *cups.Cup `json:"cup"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorBody{kind, err.Error()})
}

// errorKind names a codec error for clients.
func errorKind(err error) string {
	var ecc *qr.ECCError
	var mode qr.ModeError
	switch {
	case errors.Is(err, qr.ErrCapacity):
		return "CapacityExceeded"
	case errors.Is(err, qr.ErrNotFound):
		return "NoFinderPatternsFound"
	case errors.Is(err, qr.ErrPerspective):
		return "PerspectiveEstimationFailed"
	case errors.Is(err, qr.ErrFormat):
		return "FormatInfoUnrecoverable"
	case errors.As(err, &ecc):
		return "EccUncorrectable"
	case errors.Is(err, qr.ErrBitstream):
		return "BitstreamMalformed"
	case errors.As(err, &mode):
		return "UnsupportedMode"
	case errors.Is(err, qr.ErrImage):
		return "ImageUndecodable"
	case errors.Is(err, qr.ErrLargeImage):
		return "ImageTooLarge"
	}
	return "Internal"
}

// admin wraps h in HTTP basic authentication against the admin
// credentials.
func (s *server) admin(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || len(s.AdminHash) == 0 ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.AdminUser)) != 1 ||
			bcrypt.CompareHashAndPassword(s.AdminHash, []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="cups"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized",
				errors.New("admin credentials required"))
			return
		}
		h(w, r)
	})
}

func (s *server) listCups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.List())
}

func (s *server) getCup(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "NotFound", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// cupRequest is the body of cup creation and update requests.  Form
// values are accepted too.
type cupRequest struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

func (s *server) readCup(w http.ResponseWriter, r *http.Request) (cupRequest, error) {
	var req cupRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Owner, req.Name = r.PostForm.Get("owner"), r.PostForm.Get("name")
	if v := r.PostForm.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, err
		}
		req.Active = &b
	}
	return req, nil
}

func (s *server) createCup(w http.ResponseWriter, r *http.Request) {
	req, err := s.readCup(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}
	c, err := s.Store.Create(req.Owner, req.Name)
	switch {
	case errors.Is(err, cups.ErrInvalid):
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	case err != nil:
		s.Logger.Error("create cup", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal", err)
		return
	}
	s.Logger.Info("cup created", "id", c.ID, "owner", c.Owner)
	w.Header().Set("Location", "/cups/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (s *server) updateCup(w http.ResponseWriter, r *http.Request) {
	req, err := s.readCup(w, r)
	if err == nil && req.Active == nil {
		err = errors.New("active is required")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}
	c, err := s.Store.SetActive(mux.Vars(r)["id"], *req.Active)
	switch {
	case errors.Is(err, cups.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err)
		return
	case err != nil:
		s.Logger.Error("update cup", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) deleteCup(w http.ResponseWriter, r *http.Request) {
	err := s.Store.Delete(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, cups.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err)
		return
	case err != nil:
		s.Logger.Error("delete cup", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// qrParams reads the level and size query parameters.
func (s *server) qrParams(r *http.Request) (qr.Level, int, error) {
	q := r.URL.Query()
	level, size := qr.M, s.QRSize
	if v := q.Get("level"); v != "" {
		l, err := qr.ParseLevel(v)
		if err != nil {
			return 0, 0, err
		}
		level = l
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxQRSize {
			return 0, 0, errors.New("size must be between 1 and 4096")
		}
		size = n
	}
	return level, size, nil
}

func (s *server) writeQR(w http.ResponseWriter, r *http.Request, payload []byte) {
	level, size, err := s.qrParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}
	svg, err := qr.Generate(payload, level, size)
	switch {
	case errors.Is(err, qr.ErrCapacity):
		writeError(w, http.StatusRequestEntityTooLarge, errorKind(err), err)
		return
	case err != nil:
		s.Logger.Error("generate", "err", err)
		writeError(w, http.StatusInternalServerError, errorKind(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

func (s *server) cupQR(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "NotFound", err)
		return
	}
	s.writeQR(w, r, []byte(c.ID))
}

func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("data") {
		writeError(w, http.StatusBadRequest, "BadRequest",
			errors.New("data is required"))
		return
	}
	s.writeQR(w, r, []byte(q.Get("data")))
}

// readImage returns the uploaded image: the "image" part of a
// multipart form, or else the whole body.
func (s *server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxBody)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *server) scan(w http.ResponseWriter, r *http.Request) {
	data, err := s.readImage(w, r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "TooLarge", err)
		} else {
			writeError(w, http.StatusBadRequest, "BadRequest", err)
		}
		return
	}
	payload, err := qr.Scan(data)
	if err != nil {
		kind := errorKind(err)
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, qr.ErrImage):
			status = http.StatusBadRequest
		case errors.Is(err, qr.ErrLargeImage):
			status = http.StatusRequestEntityTooLarge
		}
		s.Logger.Debug("scan failed", "kind", kind, "err", err)
		writeError(w, status, kind, err)
		return
	}
	body := scanBody{Payload: qr.Text(payload)}
	if c, err := s.Store.Get(body.Payload); err == nil {
		body.Cup = &c
	}
	writeJSON(w, http.StatusOK, body)
}
