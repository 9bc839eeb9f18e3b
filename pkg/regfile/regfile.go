// Package regfile decodes the YAML/JSON registry files used for sources and
// publishers.
package regfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type decoder struct {
	name string
	exts []string
	fn   func([]byte, any) error
}

var decoders = []decoder{
	{name: "yaml", exts: []string{".yaml", ".yml"}, fn: yaml.Unmarshal},
	{name: "json", exts: []string{".json"}, fn: json.Unmarshal},
}

// Load reads path and decodes it into out. The extension picks the format;
// files without a known extension are tried as YAML, then JSON. kind names
// the registry in error messages.
func Load(path, kind string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%s file path is empty", kind)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s file: %w", kind, err)
	}
	return Decode(raw, filepath.Ext(path), kind, out)
}

// Decode decodes data into out using the decoder registered for ext.
func Decode(data []byte, ext, kind string, out any) error {
	ext = strings.ToLower(strings.TrimSpace(ext))

	var errs []error
	for _, d := range decoders {
		if ext != "" && !d.handles(ext) && known(ext) {
			continue
		}
		err := d.fn(data, out)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("decode %s %s: %w", d.name, kind, err))
	}
	return fmt.Errorf("%s file format not recognized (expected YAML or JSON): %w", kind, errors.Join(errs...))
}

func (d decoder) handles(ext string) bool {
	for _, e := range d.exts {
		if e == ext {
			return true
		}
	}
	return false
}

func known(ext string) bool {
	for _, d := range decoders {
		if d.handles(ext) {
			return true
		}
	}
	return false
}
