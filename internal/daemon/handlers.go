package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pixora/internal/api"
	"pixora/internal/export"
	"pixora/internal/imaging"
	"pixora/internal/journal"
	"pixora/internal/logging"
	"pixora/internal/services"
	"pixora/internal/sysinfo"
)

const sseKeepAlive = 15 * time.Second

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.daemon.Status(r.Context()))
}

func (h *handlers) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req api.ProcessRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	blob, err := imaging.ParseDataURL(req.DataURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.daemon.orchestrator.Process(r.Context(), blob, req.Settings)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req api.ImageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	blob, err := imaging.ParseDataURL(req.DataURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var info imaging.Info
	err = h.daemon.orchestrator.Do(r.Context(), func() error {
		var inspectErr error
		info, inspectErr = imaging.Inspect(blob)
		return inspectErr
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *handlers) handleResize(w http.ResponseWriter, r *http.Request) {
	var req api.ResizeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	blob, err := imaging.ParseDataURL(req.DataURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.daemon.orchestrator.Resize(r.Context(), blob, req.ResizeOptions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handlers) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req api.CompressRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	blob, err := imaging.ParseDataURL(req.DataURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.daemon.orchestrator.Compress(r.Context(), blob, req.CompressOptions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handlers) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	var req api.ImageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	blob, err := imaging.ParseDataURL(req.DataURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dataURL, err := h.daemon.orchestrator.RemoveBackground(r.Context(), blob)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.DataURLResponse{DataURL: dataURL})
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	status, err := h.daemon.provisioner.Status()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *handlers) handleListArtifacts(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, api.ArtifactListResponse{Artifacts: h.daemon.registry.List()})
}

func (h *handlers) handleReadArtifact(w http.ResponseWriter, r *http.Request) {
	var req api.ArtifactPathRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	dataURL, err := h.daemon.registry.ReadDataURL(req.Path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.DataURLResponse{DataURL: dataURL})
}

func (h *handlers) handleDeleteArtifacts(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteArtifactsRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	removed, err := h.daemon.registry.Delete(req.Paths)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.DeleteArtifactsResponse{Removed: removed})
}

func (h *handlers) handleDeleteAllArtifacts(w http.ResponseWriter, r *http.Request) {
	tracked := h.daemon.registry.Len()
	if err := h.daemon.registry.DeleteAll(); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.DeleteArtifactsResponse{Removed: tracked})
}

func (h *handlers) handlePersistArtifact(w http.ResponseWriter, r *http.Request) {
	var req api.PersistRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	size, err := h.daemon.registry.Persist(req.Path, req.Destination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.PersistResponse{Destination: req.Destination, SizeBytes: size})
}

func (h *handlers) handleExport(w http.ResponseWriter, r *http.Request) {
	var req api.ExportRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, entry := range req.Entries {
		if _, err := h.daemon.registry.Lookup(entry.Path); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	summary, err := export.WriteZip(r.Context(), req.Entries, req.Destination, h.daemon.hub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.WithContext(r.Context(), h.logger).Info("artifacts exported",
		logging.String("destination", summary.Path),
		logging.Int("entries", summary.Entries),
		logging.Int64("bytes", summary.Bytes),
		logging.String(logging.FieldEventType, "export_complete"),
	)
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) handleSystem(w http.ResponseWriter, r *http.Request) {
	info, err := sysinfo.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, r, services.Wrap(services.ErrIO, "api", "system", "snapshot failed", err))
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.daemon.journal == nil {
		h.writeJSON(w, http.StatusOK, api.HistoryResponse{Runs: []journal.Run{}})
		return
	}
	limit := journal.DefaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, r, services.Wrap(services.ErrValidation, "api", "history", "limit must be a positive integer", nil))
			return
		}
		limit = parsed
	}
	runs, err := h.daemon.journal.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.HistoryResponse{Runs: runs})
}

// handleEvents streams hub notifications as server-sent events until the
// client disconnects or the server shuts down.
func (h *handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch, cancel := h.daemon.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streams.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Debug("event encode failed", logging.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Name, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
