// Package sources loads feed source definitions (YAML/JSON) and opens the
// documents they point at.
package sources

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-feed-importer/pkg/regfile"
)

const (
	TypeFile = "file"
	TypeHTTP = "http"
)

// Source is one feed to import.
type Source struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           string         `json:"type" yaml:"type"`
	Location       string         `json:"location" yaml:"location"`
	SiteURL        string         `json:"site_url" yaml:"site_url"`
	Author         string         `json:"author" yaml:"author"`
	Enabled        *bool          `json:"enabled" yaml:"enabled"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms"`
	Config         map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// Registry holds the sources loaded from a file.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	idx     map[string]Source
}

// FromLocation builds an ad-hoc source for a single path or URL.
func FromLocation(location, siteURL, author string) (Source, error) {
	src := sanitizeSource(Source{
		ID:       "cli",
		Name:     location,
		Location: location,
		SiteURL:  siteURL,
		Author:   author,
	})
	if err := validateSource(src); err != nil {
		return Source{}, err
	}
	return src, nil
}

// LoadRegistry loads sources from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	var parsed registryFile
	if err := regfile.Load(path, "sources", &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	reg := &Registry{
		sources: make([]Source, len(parsed.Sources)),
		idx:     make(map[string]Source, len(parsed.Sources)),
	}
	for i := range parsed.Sources {
		src := sanitizeSource(parsed.Sources[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("source[%d]: %w", i, err)
		}
		if _, exists := reg.idx[src.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		reg.sources[i] = src
		reg.idx[src.ID] = src
	}
	return reg, nil
}

// All returns a copy of every loaded source.
func (r *Registry) All() []Source {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Enabled returns the sources not explicitly disabled.
func (r *Registry) Enabled() []Source {
	var out []Source
	for _, src := range r.All() {
		if src.Enabled == nil || *src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// ByID returns the source with the given id, if loaded.
func (r *Registry) ByID(id string) (Source, bool) {
	id = strings.TrimSpace(id)
	if r == nil || id == "" {
		return Source{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.idx[id]
	return src, ok
}

func sanitizeSource(src Source) Source {
	src.ID = strings.TrimSpace(src.ID)
	src.Name = strings.TrimSpace(src.Name)
	src.Location = strings.TrimSpace(src.Location)
	src.SiteURL = strings.TrimSpace(src.SiteURL)
	src.Author = strings.TrimSpace(src.Author)
	src.Type = strings.ToLower(strings.TrimSpace(src.Type))

	if src.Type == "" {
		src.Type = typeFor(src.Location)
	}
	if src.Name == "" {
		src.Name = src.ID
	}
	if src.Config == nil {
		src.Config = map[string]any{}
	}
	if src.RequestDelayMs < 0 {
		src.RequestDelayMs = 0
	}
	return src
}

func typeFor(location string) string {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return TypeHTTP
	}
	return TypeFile
}

func validateSource(src Source) error {
	if src.ID == "" {
		return errors.New("id is required")
	}
	if src.Location == "" {
		return fmt.Errorf("location is required for source %q", src.ID)
	}
	if src.Type != TypeFile && src.Type != TypeHTTP {
		return fmt.Errorf("unsupported type %q for source %q", src.Type, src.ID)
	}
	return nil
}

// RequestDelay returns the pause observed before fetching this source.
func (s Source) RequestDelay() time.Duration {
	if s.RequestDelayMs <= 0 {
		return 0
	}
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}
