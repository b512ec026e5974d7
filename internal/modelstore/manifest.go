package modelstore

import (
	"encoding/json"
	"fmt"

	"pixora/internal/services"
)

// Manifest maps resource keys to the chunks that make up each resource.
type Manifest map[string]Resource

// Resource is one downloadable file split into ordered chunks.
type Resource struct {
	Chunks []Chunk `json:"chunks"`
	Size   int64   `json:"size"`
	Mime   string  `json:"mime,omitempty"`
}

// Chunk names a fragment and its [start, end) byte range within the resource.
type Chunk struct {
	Name    string  `json:"name"`
	Offsets []int64 `json:"offsets"`
}

// Len returns the byte length implied by the chunk offsets.
func (c Chunk) Len() (int64, error) {
	if len(c.Offsets) != 2 {
		return 0, services.Wrap(services.ErrIntegrity, "modelstore", "manifest", fmt.Sprintf("chunk %q has %d offsets, want 2", c.Name, len(c.Offsets)), nil)
	}
	n := c.Offsets[1] - c.Offsets[0]
	if n < 0 {
		return 0, services.Wrap(services.ErrIntegrity, "modelstore", "manifest", fmt.Sprintf("chunk %q has inverted offsets", c.Name), nil)
	}
	return n, nil
}

// ParseManifest decodes the manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrIntegrity, "modelstore", "manifest", "invalid json", err)
	}
	return m, nil
}

// Lookup returns the resource stored under key.
func (m Manifest) Lookup(key string) (Resource, error) {
	res, ok := m[key]
	if !ok {
		return Resource{}, services.Wrap(services.ErrIntegrity, "modelstore", "manifest", fmt.Sprintf("key %q not present", key), nil)
	}
	if len(res.Chunks) == 0 {
		return Resource{}, services.Wrap(services.ErrIntegrity, "modelstore", "manifest", fmt.Sprintf("key %q lists no chunks", key), nil)
	}
	return res, nil
}
