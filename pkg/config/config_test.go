package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("expected default config (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Storage.CompressionLevel = 9
	cfg.GC.AutoGC = true
	cfg.Session.StaleSessionThresholdHours = 12

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStaleSessionDerivesSecondsFromHours(t *testing.T) {
	cfg := Default()
	cfg.Session.StaleSessionThresholdHours = 24
	ask, auto := cfg.StaleSession()
	if ask != 24*3600 {
		t.Errorf("expected 86400, got %d", ask)
	}
	if auto != 7*24*60*60 {
		t.Errorf("expected 604800, got %d", auto)
	}
}
