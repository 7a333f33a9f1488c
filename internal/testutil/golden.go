package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// GoldenUpdateEnv names the environment variable that rewrites golden files
// instead of comparing against them.
const GoldenUpdateEnv = "GOLDEN_UPDATE"

// Golden compares output against testdata/<name>.golden.
// Line endings are normalized so checkouts with CRLF still match.
func Golden(t testing.TB, name string, got []byte) {
	t.Helper()

	goldenPath := filepath.Join("testdata", name+".golden")

	if os.Getenv(GoldenUpdateEnv) != "" {
		if err := os.MkdirAll("testdata", 0o755); err != nil {
			t.Fatalf("failed to create testdata dir: %v", err)
		}
		if err := os.WriteFile(goldenPath, got, 0o644); err != nil {
			t.Fatalf("failed to update golden file: %v", err)
		}
		return
	}

	want, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("failed to read golden file %s: %v\nGot:\n%s", goldenPath, err, got)
	}

	want = bytes.ReplaceAll(want, []byte("\r\n"), []byte("\n"))
	if !bytes.Equal(got, want) {
		t.Errorf("output mismatch for %s\nWant:\n%s\nGot:\n%s", name, want, got)
	}
}

// GoldenString is like Golden but takes a string.
func GoldenString(t testing.TB, name string, got string) {
	t.Helper()
	Golden(t, name, []byte(got))
}
