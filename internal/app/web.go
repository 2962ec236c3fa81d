// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/imu_monitor/internal/link"
	"github.com/relabs-tech/imu_monitor/internal/record"
	"github.com/relabs-tech/imu_monitor/internal/window"
)

const shutdownTimeout = 5 * time.Second

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	Port string `json:"port"`
	Baud int    `json:"baud,omitempty"`
}

// WindowView is a window snapshot with its statistics.
type WindowView struct {
	window.Snapshot
	Stats window.Stats `json:"stats"`
}

func viewOf(w *window.Window) WindowView {
	return WindowView{Snapshot: w.Snapshot(), Stats: w.Statistics()}
}

// Handler builds the HTTP API around m.
func Handler(m *Monitor, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ports", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string][]string{"ports": m.Link().Ports()})
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, m.Status())
	})

	mux.HandleFunc("POST /api/connect", func(w http.ResponseWriter, r *http.Request) {
		var req ConnectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Port == "" {
			http.Error(w, "port is required", http.StatusBadRequest)
			return
		}
		if err := m.Connect(req.Port, req.Baud); err != nil {
			var connErr *link.ConnectError
			switch {
			case errors.As(err, &connErr):
				http.Error(w, err.Error(), http.StatusBadGateway)
			case errors.Is(err, link.ErrClosed):
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, logger, http.StatusOK, m.Status())
	})

	mux.HandleFunc("POST /api/disconnect", func(w http.ResponseWriter, r *http.Request) {
		m.Disconnect()
		writeJSON(w, logger, http.StatusOK, m.Status())
	})

	mux.HandleFunc("GET /api/window/{group}", func(w http.ResponseWriter, r *http.Request) {
		win, ok := m.Window(r.PathValue("group"))
		if !ok {
			http.Error(w, "unknown window group", http.StatusNotFound)
			return
		}
		writeJSON(w, logger, http.StatusOK, viewOf(win))
	})

	mux.HandleFunc("GET /api/orientation", func(w http.ResponseWriter, r *http.Request) {
		pose, ok := m.Pose()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, http.StatusOK, pose)
	})

	mux.HandleFunc("GET /api/gps", func(w http.ResponseWriter, r *http.Request) {
		fix, ok := m.Fix()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, http.StatusOK, fix)
	})

	mux.HandleFunc("GET /api/log", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string][]string{"messages": m.LogTail()})
	})

	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		gestures, err := m.Store().Gestures()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make(map[string][]string, len(gestures))
		for _, g := range gestures {
			files, err := m.Store().Recordings(g)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out[g] = append([]string{}, files...)
		}
		writeJSON(w, logger, http.StatusOK, out)
	})

	mux.HandleFunc("POST /api/recordings/{gesture}", func(w http.ResponseWriter, r *http.Request) {
		res, err := m.Save(r.Context(), r.PathValue("gesture"))
		switch {
		case errors.Is(err, ErrNoSamples), errors.Is(err, record.ErrMisaligned):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil && res.Path == "":
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			// CSV written, secondary sink failed
			logger.Error().Err(err).Str("path", res.Path).Msg("recording sink failed")
			writeJSON(w, logger, http.StatusAccepted, res)
			return
		}
		writeJSON(w, logger, http.StatusCreated, res)
	})

	mux.HandleFunc("GET /api/recordings/{gesture}/{file}", func(w http.ResponseWriter, r *http.Request) {
		opts := m.acc.Options()
		opts.MaxSamples = 0 // show the whole recording
		acc, gyro, err := m.Store().Load(r.PathValue("gesture"), r.PathValue("file"), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]WindowView{
			GroupAcc:  viewOf(acc),
			GroupGyro: viewOf(gyro),
		})
	})

	mux.Handle("GET /metrics", m.Metrics().Handler())
	mux.HandleFunc("GET /ws", m.Hub().ServeWS)

	return mux
}

// writeJSON encodes before writing the header so an encode failure
// becomes a 500 instead of a truncated 2xx body.
func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("json encode error")
		http.Error(w, "response encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Debug().Err(err).Msg("response write error")
	}
}

// RunWeb serves the API on port until ctx is done.
func RunWeb(ctx context.Context, port int, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("web server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}
