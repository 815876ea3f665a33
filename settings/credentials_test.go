package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataDirAndFilePathUseXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error: %v", err)
	}
	if want := filepath.Join(tmp, "locasset"); dir != want {
		t.Fatalf("DataDir() = %q, want %q", dir, want)
	}
	if want := filepath.Join(tmp, "locasset", "auth.json"); FilePath() != want {
		t.Fatalf("FilePath() = %q, want %q", FilePath(), want)
	}
}

func TestSaveLoadRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetAPIKey("groq", "apikey123456", ""); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}
	if err := SetAPIKey("custom-openai", "k", "http://llm.local/v1"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}

	path := filepath.Join(tmp, "locasset", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	if got := GetAPIKey("groq"); got != "apikey123456" {
		t.Fatalf("GetAPIKey(groq) = %q", got)
	}
	if got := GetBaseURL("custom-openai"); got != "http://llm.local/v1" {
		t.Fatalf("GetBaseURL(custom-openai) = %q", got)
	}

	if err := Remove("groq"); err != nil {
		t.Fatalf("Remove(groq) error: %v", err)
	}
	if got := GetAPIKey("groq"); got != "" {
		t.Fatalf("GetAPIKey after remove = %q, want empty", got)
	}
	if err := Remove("missing-provider"); err != nil {
		t.Fatalf("Remove(missing) should be no-op, got: %v", err)
	}
}

func TestLoadInvalidFileIsEmpty(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)
	if err := os.MkdirAll(filepath.Join(tmp, "locasset"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "locasset", "auth.json"), []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Load(); len(got) != 0 {
		t.Fatalf("Load() = %#v, want empty", got)
	}
}

func TestResolveAPIKeyOrder(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(EnvAPIKey, "")
	if err := SetAPIKey("google", "stored", ""); err != nil {
		t.Fatal(err)
	}

	if got := ResolveAPIKey("google", ""); got != "stored" {
		t.Fatalf("store fallback = %q", got)
	}
	t.Setenv(EnvAPIKey, "from-env")
	if got := ResolveAPIKey("google", ""); got != "from-env" {
		t.Fatalf("env override = %q", got)
	}
	if got := ResolveAPIKey("google", " from-flag "); got != "from-flag" {
		t.Fatalf("flag override = %q", got)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("short"); got != "****" {
		t.Fatalf("MaskKey(short) = %q", got)
	}
	if got := MaskKey("abcdefghijkl"); got != "abcd...ijkl" {
		t.Fatalf("MaskKey(long) = %q", got)
	}
}
