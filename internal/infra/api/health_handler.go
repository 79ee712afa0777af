package api

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"service":     s.opts.Service,
		"version":     s.opts.Version,
		"environment": s.opts.Environment,
		"store":       s.opts.Store,
		"uptime":      time.Since(s.started).Seconds(),
		"memory": map[string]string{
			"used":  fmt.Sprintf("%d MB", ms.HeapAlloc/1024/1024),
			"total": fmt.Sprintf("%d MB", ms.HeapSys/1024/1024),
		},
		"checklist": s.opts.Checklist,
	})
}
