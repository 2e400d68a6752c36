package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("EQ_TEST_A=from-file\nEQ_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EQ_TEST_B", "from-env")
	os.Unsetenv("EQ_TEST_A")
	t.Cleanup(func() { os.Unsetenv("EQ_TEST_A") })

	LoadEnv(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("EQ_TEST_A"); got != "from-file" {
		t.Errorf("EQ_TEST_A = %q", got)
	}
	if got := os.Getenv("EQ_TEST_B"); got != "from-env" {
		t.Errorf("EQ_TEST_B = %q, existing variables must win", got)
	}
}
