package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("Request handled",
				zap.String("RequestID", middleware.GetReqID(r.Context())),
				zap.String("Method", r.Method),
				zap.String("Path", r.URL.Path),
				zap.Int("Status", ww.Status()),
				zap.Int("Bytes", ww.BytesWritten()),
				zap.Duration("Duration", time.Since(start)),
				zap.String("RemoteAddr", r.RemoteAddr),
			)
		})
	}
}

// internalRouter only serves the scrape endpoint. It is bound to the metrics address, never the public one
func internalRouter(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics)
	return r
}

// pages serves the exported frontend. Extensionless page paths map to their .html file,
// anything else unknown falls back to index.html
func pages(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		if filepath.Ext(name) == "" {
			page := strings.TrimSuffix(name, string(filepath.Separator)) + ".html"
			if _, err := os.Stat(page); err == nil {
				http.ServeFile(w, r, page)
				return
			}
			if _, err := os.Stat(filepath.Join(name, "index.html")); err == nil {
				files.ServeHTTP(w, r)
				return
			}
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
