package repo

import (
	"testing"

	"github.com/redisun/ctx/pkg/config"
)

func TestObserveFileWriteRejectsIgnoredPath(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Ingestion.IgnoreGlobs = []string{"*.log", "vendor/"}
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.StartSession("ignore test"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := r.ObserveFileWrite("build/output.log", []byte("noise"), 100); err != ErrPathIgnored {
		t.Fatalf("expected ErrPathIgnored for *.log, got %v", err)
	}
	if _, err := r.ObserveFileWrite("vendor/dep/file.go", []byte("noise"), 100); err != ErrPathIgnored {
		t.Fatalf("expected ErrPathIgnored for vendor/ prefix, got %v", err)
	}
	if _, err := r.ObserveFileWrite("src/main.go", []byte("package main"), 100); err != nil {
		t.Fatalf("expected non-ignored path to succeed, got %v", err)
	}
}

func TestObserveFileReadRejectsIgnoredPath(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Ingestion.IgnoreGlobs = []string{"*.secret"}
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.StartSession("ignore test"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := r.ObserveFileRead("keys.secret", 100); err != ErrPathIgnored {
		t.Fatalf("expected ErrPathIgnored, got %v", err)
	}
	if _, err := r.ObserveFileReadWithContent("keys.secret", []byte("shh"), 100); err != ErrPathIgnored {
		t.Fatalf("expected ErrPathIgnored, got %v", err)
	}
}

func TestObserveFileWriteEnforcesFileBudget(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Ingestion.MaxFilesPerStep = 1
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.StartSession("budget test"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := r.ObserveFileWrite("a.go", []byte("a"), 100); err != nil {
		t.Fatalf("first write should succeed: %v", err)
	}
	if _, err := r.ObserveFileWrite("b.go", []byte("b"), 100); err == nil {
		t.Fatal("expected second write to exceed max_files_per_step")
	} else if _, ok := err.(*BudgetExceededError); !ok {
		t.Fatalf("expected *BudgetExceededError, got %T: %v", err, err)
	}

	if _, err := r.FlushActiveSession("edit", 100); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}
	if _, err := r.ObserveFileWrite("c.go", []byte("c"), 200); err != nil {
		t.Fatalf("expected budget to reset after flush, got %v", err)
	}
}

func TestObserveFileWriteEnforcesByteBudget(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Ingestion.MaxBytesPerStep = 4
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.StartSession("byte budget test"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := r.ObserveFileWrite("a.txt", []byte("abcd"), 100); err != nil {
		t.Fatalf("write within budget should succeed: %v", err)
	}
	if _, err := r.ObserveFileWrite("b.txt", []byte("e"), 100); err == nil {
		t.Fatal("expected write to exceed max_bytes_per_step")
	} else if _, ok := err.(*BudgetExceededError); !ok {
		t.Fatalf("expected *BudgetExceededError, got %T: %v", err, err)
	}
}
