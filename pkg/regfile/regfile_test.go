package regfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type entries struct {
	Items []struct {
		ID string `json:"id" yaml:"id"`
	} `json:"items" yaml:"items"`
}

func write(t *testing.T, name, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadByExtension(t *testing.T) {
	cases := map[string]string{
		"reg.yaml": "items:\n  - id: a\n",
		"reg.yml":  "items:\n  - id: a\n",
		"reg.json": `{"items":[{"id":"a"}]}`,
		"reg":      `{"items":[{"id":"a"}]}`,
	}
	for name, raw := range cases {
		var out entries
		if err := Load(write(t, name, raw), "items", &out); err != nil {
			t.Fatalf("%s: Load: %v", name, err)
		}
		if len(out.Items) != 1 || out.Items[0].ID != "a" {
			t.Fatalf("%s: unexpected result %+v", name, out)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	var out entries
	if err := Load("  ", "sources", &out); err == nil || !strings.Contains(err.Error(), "sources file path is empty") {
		t.Fatalf("expected empty path error, got %v", err)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "sources", &out); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if err := Load(write(t, "bad.json", "items: [a"), "sources", &out); err == nil {
		t.Fatalf("expected decode error")
	}
}
