package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func chdirForTest(t *testing.T, dir string) func() {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%s): %v", dir, err)
	}
	return func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore cwd %s: %v", wd, err)
		}
	}
}

func TestInitSessionPackEndToEnd(t *testing.T) {
	dir := t.TempDir()

	var initOut bytes.Buffer
	initCmd := newInitCmd()
	initCmd.SetOut(&initOut)
	initCmd.SetArgs([]string{dir})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("init Execute: %v\noutput:\n%s", err, initOut.String())
	}
	if !strings.Contains(initOut.String(), "initialized empty context repository") {
		t.Fatalf("init output = %q, missing expected message", initOut.String())
	}

	restore := chdirForTest(t, dir)
	defer restore()

	var startOut bytes.Buffer
	startCmd := newSessionStartCmd()
	startCmd.SetOut(&startOut)
	startCmd.SetArgs([]string{"add readme"})
	if err := startCmd.Execute(); err != nil {
		t.Fatalf("session start Execute: %v\noutput:\n%s", err, startOut.String())
	}
	if !strings.Contains(startOut.String(), "started session") {
		t.Fatalf("session start output = %q, missing expected message", startOut.String())
	}

	writeCmd := newObserveWriteCmd()
	var writeOut bytes.Buffer
	writeCmd.SetOut(&writeOut)
	writeCmd.SetIn(strings.NewReader("# hello\n"))
	writeCmd.SetArgs([]string{"README.md"})
	if err := writeCmd.Execute(); err != nil {
		t.Fatalf("observe write Execute: %v\noutput:\n%s", err, writeOut.String())
	}

	flushCmd := newSessionFlushCmd()
	var flushOut bytes.Buffer
	flushCmd.SetOut(&flushOut)
	flushCmd.SetArgs([]string{"--kind", "edit"})
	if err := flushCmd.Execute(); err != nil {
		t.Fatalf("session flush Execute: %v\noutput:\n%s", err, flushOut.String())
	}

	finishCmd := newSessionEventCmd()
	finishCmd.SetOut(&bytes.Buffer{})
	finishCmd.SetArgs([]string{"finish"})
	if err := finishCmd.Execute(); err != nil {
		t.Fatalf("session state finish Execute: %v", err)
	}
	confirmCmd := newSessionEventCmd()
	confirmCmd.SetOut(&bytes.Buffer{})
	confirmCmd.SetArgs([]string{"confirm"})
	if err := confirmCmd.Execute(); err != nil {
		t.Fatalf("session state confirm Execute: %v", err)
	}

	flushCmd2 := newSessionFlushCmd()
	flushCmd2.SetOut(&bytes.Buffer{})
	flushCmd2.SetArgs([]string{"--kind", "confirm"})
	if err := flushCmd2.Execute(); err != nil {
		t.Fatalf("session flush (post-confirm) Execute: %v", err)
	}

	compactCmd := newSessionCompactCmd()
	var compactOut bytes.Buffer
	compactCmd.SetOut(&compactOut)
	compactCmd.SetArgs([]string{"added readme"})
	if err := compactCmd.Execute(); err != nil {
		t.Fatalf("session compact Execute: %v\noutput:\n%s", err, compactOut.String())
	}

	var packOut bytes.Buffer
	packCmd := newPackCmd()
	packCmd.SetOut(&packOut)
	packCmd.SetArgs([]string{"README.md"})
	if err := packCmd.Execute(); err != nil {
		t.Fatalf("pack Execute: %v\noutput:\n%s", err, packOut.String())
	}
	if !strings.Contains(packOut.String(), "README.md") {
		t.Fatalf("pack output = %q, expected to mention README.md", packOut.String())
	}

	var verifyOut bytes.Buffer
	verifyCmd := newVerifyCmd()
	verifyCmd.SetOut(&verifyOut)
	if err := verifyCmd.Execute(); err != nil {
		t.Fatalf("verify Execute: %v\noutput:\n%s", err, verifyOut.String())
	}
	if !strings.Contains(verifyOut.String(), "0 corrupt") {
		t.Fatalf("verify output = %q, expected 0 corrupt", verifyOut.String())
	}
}
