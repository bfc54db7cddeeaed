package screenshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/matgreaves/run"
	"go.uber.org/zap"
)

// Grabber is the capture surface the HTTP server needs. *Capturer satisfies
// it; tests substitute a fake.
type Grabber interface {
	Capture(ctx context.Context) (string, error)
	Latest() (string, error)
	List() ([]string, error)
	ResolvePath(name string) (string, error)
}

// Server exposes the display capture over HTTP: trigger a capture, fetch the
// latest image, list and download past captures.
type Server struct {
	Grabber Grabber
	Logger  *zap.Logger
}

// Routes builds the server's router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/screenshot", s.handleCapture)
	r.Get("/screenshot/latest", s.handleLatest)
	r.Get("/screenshots", s.handleList)
	r.Get("/screenshots/{filename}", s.handleFile)

	return r
}

// Runner returns a run.Runner serving the routes on addr until the context
// is cancelled.
func (s *Server) Runner(addr string) run.Runner {
	return run.Func(func(ctx context.Context) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           s.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			errc <- srv.ListenAndServe()
		}()

		s.Logger.Info("screenshot server listening", zap.String("addr", addr))

		select {
		case <-ctx.Done():
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
			return nil
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"service": "screenshot",
		"endpoints": []string{
			"/screenshot",
			"/screenshot/latest",
			"/screenshots",
			"/screenshots/{filename}",
		},
	})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	path, err := s.Grabber.Capture(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	name := filepath.Base(path)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"screenshot_path": path,
		"filename":        name,
		"url":             "/screenshots/" + name,
		"full_url":        fmt.Sprintf("http://%s/screenshots/%s", r.Host, name),
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	path, err := s.Grabber.Latest()
	if err != nil {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := s.Grabber.List()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	type entry struct {
		Filename string    `json:"filename"`
		URL      string    `json:"url"`
		Created  time.Time `json:"created"`
		Size     int64     `json:"size"`
	}
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		e := entry{Filename: name, URL: "/screenshots/" + name}
		if path, err := s.Grabber.ResolvePath(name); err == nil {
			if info, err := os.Stat(path); err == nil {
				e.Created = info.ModTime()
				e.Size = info.Size()
			}
		}
		entries = append(entries, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"count":       len(entries),
		"screenshots": entries,
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := s.Grabber.ResolvePath(name)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.fail(w, http.StatusNotFound, fmt.Errorf("screenshot %s not found", name))
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.Logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
