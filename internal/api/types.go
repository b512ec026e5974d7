package api

import (
	"pixora/internal/artifacts"
	"pixora/internal/export"
	"pixora/internal/imaging"
	"pixora/internal/journal"
	"pixora/internal/modelstore"
	"pixora/internal/pipeline"
	"pixora/internal/staging"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// HealthResponse answers the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// EngineStatus reports the inference session state.
type EngineStatus struct {
	State    string `json:"state"`
	InFlight int64  `json:"inFlight"`
	Loads    int64  `json:"loads"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool              `json:"running"`
	PID              int               `json:"pid"`
	SessionID        string            `json:"sessionId,omitempty"`
	StartedAt        string            `json:"startedAt,omitempty"`
	Workers          int               `json:"workers"`
	TempDir          string            `json:"tempDir"`
	TempUsage        staging.Usage     `json:"tempUsage"`
	TrackedArtifacts int               `json:"trackedArtifacts"`
	Engine           EngineStatus      `json:"engine"`
	Model            modelstore.Status `json:"model"`
	JournalPath      string            `json:"journalPath,omitempty"`
	LockFilePath     string            `json:"lockFilePath"`
	EventSubscribers int               `json:"eventSubscribers"`
	EventsDropped    uint64            `json:"eventsDropped"`
}

// ImageRequest carries a single data URL.
type ImageRequest struct {
	DataURL string `json:"dataUrl"`
}

// ProcessRequest runs the full pipeline on one image.
type ProcessRequest struct {
	DataURL  string            `json:"dataUrl"`
	Settings pipeline.Settings `json:"settings"`
}

// ProcessResponse is the processed artifact.
type ProcessResponse = pipeline.Result

// InfoResponse describes an image.
type InfoResponse = imaging.Info

// ResizeRequest resizes one image; the options are inlined.
type ResizeRequest struct {
	DataURL string `json:"dataUrl"`
	imaging.ResizeOptions
}

// ResizeResponse is the resized image.
type ResizeResponse = imaging.ResizeResult

// CompressRequest re-encodes one image; the options are inlined.
type CompressRequest struct {
	DataURL string `json:"dataUrl"`
	imaging.CompressOptions
}

// CompressResponse reports the re-encoded image and size change.
type CompressResponse = imaging.CompressResult

// DataURLResponse carries a single image.
type DataURLResponse struct {
	DataURL string `json:"dataUrl"`
}

// ArtifactListResponse lists tracked artifacts.
type ArtifactListResponse struct {
	Artifacts []artifacts.Artifact `json:"artifacts"`
}

// ArtifactPathRequest names one tracked artifact.
type ArtifactPathRequest struct {
	Path string `json:"path"`
}

// DeleteArtifactsRequest names artifacts to discard.
type DeleteArtifactsRequest struct {
	Paths []string `json:"paths"`
}

// DeleteArtifactsResponse reports how many tracked entries were removed.
type DeleteArtifactsResponse struct {
	Removed int `json:"removed"`
}

// PersistRequest copies a tracked artifact to a user destination.
type PersistRequest struct {
	Path        string `json:"path"`
	Destination string `json:"destination"`
}

// PersistResponse reports the written copy.
type PersistResponse struct {
	Destination string `json:"destination"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// ExportRequest zips tracked artifacts into Destination.
type ExportRequest struct {
	Entries     []export.Entry `json:"entries"`
	Destination string         `json:"destination"`
}

// ExportResponse describes the written archive.
type ExportResponse = export.Summary

// HistoryResponse lists recent runs, newest first.
type HistoryResponse struct {
	Runs []journal.Run `json:"runs"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
