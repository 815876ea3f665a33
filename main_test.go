package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/locasset/asset"
	"github.com/minios-linux/locasset/config"
	"github.com/minios-linux/locasset/settings"
	"github.com/minios-linux/locasset/store/yamlstore"
	"github.com/minios-linux/locasset/translate"
)

func setupCLI(t *testing.T) string {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })
	t.Setenv("LANGUAGE", "en")
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(settings.EnvAPIKey, "")
	return t.TempDir()
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--root", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, "locasset %s", strings.Join(args, " "))
	return out
}

func TestProgressBar(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })

	tests := []struct {
		name    string
		percent int
		width   int
		want    string
	}{
		{"clamps below zero", -10, 4, "░░░░   0%"},
		{"mid range", 50, 4, "██░░  50%"},
		{"clamps above hundred", 120, 4, "████ 100%"},
	}
	for _, tc := range tests {
		if got := progressBar(tc.percent, tc.width); got != tc.want {
			t.Fatalf("%s: progressBar() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestResolveProvider(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	prov := resolveProvider(config.TranslateConfig{Provider: "Groq", Model: "m"}, "k", 5*time.Second)
	assert.Equal(t, translate.ProviderGroq, prov.ID)
	assert.Equal(t, "k", prov.APIKey)
	assert.Equal(t, "m", prov.Model)
	assert.Equal(t, 5*time.Second, prov.Timeout)

	prov = resolveProvider(config.TranslateConfig{Provider: "http://llm.local/v1"}, "", 0)
	assert.Equal(t, translate.ProviderCustomOpenAI, prov.ID)
	assert.Equal(t, "http://llm.local/v1", prov.BaseURL)

	require.NoError(t, settings.SetAPIKey(translate.ProviderCustomOpenAI, "", "http://stored/v1"))
	prov = resolveProvider(config.TranslateConfig{Provider: translate.ProviderCustomOpenAI}, "", 0)
	assert.Equal(t, "http://stored/v1", prov.BaseURL)
}

func TestFindItemCanonicalizes(t *testing.T) {
	a, err := asset.New("Title", asset.TypeText, "en", "pt-BR")
	require.NoError(t, err)

	it, err := findItem(a, "pt_br")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", it.Language)

	_, err = findItem(a, "de")
	assert.ErrorIs(t, err, asset.ErrNotFound)
}

func TestCLIEditingFlow(t *testing.T) {
	dir := setupCLI(t)

	mustRun(t, dir, "create", "Greeting", "--lang", "en,fr")
	mustRun(t, dir, "create", "Quit icon", "--type", "sprite", "--lang", "en")
	mustRun(t, dir, "add-locale", "greeting", "--lang", "de")
	mustRun(t, dir, "set", "Greeting", "en", "Hello")
	mustRun(t, dir, "set", "Greeting", "fr", "Bonjour")

	out := mustRun(t, dir, "list")
	assert.Contains(t, out, "Greeting")
	assert.Contains(t, out, "Quit icon")
	assert.Contains(t, out, "Bonjour")
	assert.Contains(t, out, "(missing)")

	out = mustRun(t, dir, "list", "--search", "german")
	assert.Contains(t, out, "Greeting")
	assert.NotContains(t, out, "Quit icon")
	assert.NotContains(t, out, "Bonjour")

	mustRun(t, dir, "promote", "Greeting", "fr")
	out = mustRun(t, dir, "list", "--search", "greeting")
	assert.Contains(t, out, "* fr")

	_, err := run(t, dir, "remove-locale", "Quit icon", "en")
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)

	_, err = run(t, dir, "add-locale", "Greeting", "--lang", "fr")
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)

	_, err = run(t, dir, "create", "Greeting")
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)

	mustRun(t, dir, "remove-locale", "Greeting", "de")
	mustRun(t, dir, "rename", "Greeting", "Welcome")
	_, err = os.Stat(filepath.Join(dir, "assets", yamlstore.FileName("Welcome")))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "assets", yamlstore.FileName("Greeting")))
	assert.True(t, os.IsNotExist(err))

	_, err = run(t, dir, "set", "Nope", "en", "x")
	assert.ErrorIs(t, err, asset.ErrNotFound)

	out = mustRun(t, dir, "status")
	assert.Contains(t, out, "2 assets")
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "missing: en")
}

func TestCLISQLiteBackend(t *testing.T) {
	dir := setupCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName),
		[]byte("store:\n  backend: sqlite\nlanguages: [de]\n"), 0644))

	mustRun(t, dir, "create", "Title")
	mustRun(t, dir, "set", "Title", "de", "Titel")
	out := mustRun(t, dir, "list")
	assert.Contains(t, out, "Titel")
	_, err := os.Stat(filepath.Join(dir, "locasset.db"))
	assert.NoError(t, err)
}

func TestCLITranslate(t *testing.T) {
	dir := setupCLI(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil || len(body.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if strings.Contains(body.Messages[0].Content, "French") {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Bonjour"}}]}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unsupported language"}}`))
	}))
	defer srv.Close()

	cfg := "languages: [fr, de]\ntranslate:\n  provider: custom-openai\n  model: m\n  base_url: " + srv.URL + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0644))

	mustRun(t, dir, "create", "Greeting")
	mustRun(t, dir, "create", "Logo", "--type", "sprite")
	mustRun(t, dir, "set", "Greeting", "en", "Hello")

	_, err := run(t, dir, "translate", "Greeting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 translations failed")

	out := mustRun(t, dir, "list", "--search", "french")
	assert.Contains(t, out, "Bonjour")

	_, err = run(t, dir, "translate", "Logo")
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)

	mustRun(t, dir, "set", "Greeting", "en", "Hi")
	out = mustRun(t, dir, "status")
	assert.Contains(t, out, "stale: fr")
	assert.Contains(t, out, "missing: de")
}

func TestAuthCommands(t *testing.T) {
	dir := setupCLI(t)

	mustRun(t, dir, "auth", "set", "groq", "gsk_1234567890")
	assert.Equal(t, "gsk_1234567890", settings.GetAPIKey("groq"))

	out := mustRun(t, dir, "auth", "list")
	assert.Contains(t, out, "gsk_...7890")

	_, err := run(t, dir, "auth", "set", "nope", "k")
	assert.Error(t, err)

	mustRun(t, dir, "auth", "remove", "groq")
	assert.Empty(t, settings.GetAPIKey("groq"))
}

func TestVersion(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	assert.Contains(t, out, "locasset version dev")
}
