package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaultsWithFeedFlag(t *testing.T) {
	cfg, err := Load([]string{"--feed", "testdata/feed.xml", "--author", "editor"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FeedPath != "testdata/feed.xml" || cfg.Author != "editor" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.StoreType != "bbolt" || cfg.AssetBackend != "filesystem" {
		t.Fatalf("unexpected defaults: store=%q backend=%q", cfg.StoreType, cfg.AssetBackend)
	}
	if cfg.AssetFetchTimeout != 30*time.Second || cfg.NotifyTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts %v %v", cfg.AssetFetchTimeout, cfg.NotifyTimeout)
	}
	if cfg.ImportAttachments {
		t.Fatalf("attachments should be off by default")
	}
	if len(cfg.AttachmentExts) == 0 || cfg.AttachmentExts[0] != "pdf" {
		t.Fatalf("unexpected attachment extensions %v", cfg.AttachmentExts)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SOURCES_FILE", "configs/sources.yaml")
	t.Setenv("ASSET_CONCURRENCY", "8")
	t.Setenv("STORE_TYPE", "sqlite")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SourcesFile != "configs/sources.yaml" || cfg.AssetConcurrency != 8 || cfg.StoreType != "sqlite" {
		t.Fatalf("environment not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error when neither feed nor sources_file is set")
	}

	t.Setenv("ASSET_CONCURRENCY", "0")
	if _, err := Load([]string{"--feed", "x.xml"}); err == nil {
		t.Fatalf("expected error for zero concurrency")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" PDF, .zip,,mp3 ")
	want := []string{"pdf", "zip", "mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
