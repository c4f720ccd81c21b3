package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presetsJSON = `{
  "presets": {
    "avatar": {
      "tasks": [
        {
          "name": "small",
          "actions": [["resize", "60", "60"], ["save", "/out/{{node_id}}/{{image_id}}.{{ext}}"]],
          "url_template": "http://cdn.local/{{node_id}}/{{image_id}}.{{ext}}"
        }
      ]
    }
  }
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPresets(t *testing.T) {
	path := writeFile(t, t.TempDir(), "presets.json", presetsJSON)

	presets, err := LoadPresets(path)
	require.NoError(t, err)

	require.Contains(t, presets, "avatar")
	p := presets["avatar"]
	assert.Equal(t, "avatar", p.Name)
	require.Len(t, p.Tasks, 1)
	assert.Equal(t, "small", p.Tasks[0].Name)
	assert.Equal(t, []string{"resize", "60", "60"}, p.Tasks[0].Actions[0])
	assert.Equal(t, []string{"avatar"}, presets.Names())
}

func TestLoadPresetsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no presets", `{"presets": {}}`},
		{"no tasks", `{"presets": {"a": {"tasks": []}}}`},
		{"task without name", `{"presets": {"a": {"tasks": [{"actions": [["resize","1","1"]]}]}}}`},
		{"empty action", `{"presets": {"a": {"tasks": [{"name": "t", "actions": [[]]}]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "presets.json", tt.content)
			_, err := LoadPresets(path)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestMustLoad(t *testing.T) {
	dir := t.TempDir()
	presets := writeFile(t, dir, "presets.json", presetsJSON)
	cfgPath := writeFile(t, dir, "config.yaml", `
presets_path: `+presets+`
server:
  addr: "127.0.0.1:8080"
dispatcher:
  workers: 3
retry:
  attempts: 5
  delay: 250ms
  backoff: 1.5
`)

	cfg, err := MustLoad(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.WorkerCount())
	assert.Equal(t, 12, cfg.QueueSize())
	assert.Equal(t, 85, cfg.Codec.JPEGQuality)
	assert.Contains(t, cfg.Presets, "avatar")

	strategy := cfg.DefaultRetryStrategy()
	assert.Equal(t, 5, strategy.Attempts)
	assert.Equal(t, 250*time.Millisecond, strategy.Delay)
	assert.Equal(t, 1.5, strategy.Backoff)
}

func TestWorkerCountDefaultsToCPUs(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, runtime.NumCPU(), cfg.WorkerCount())
}

func TestDBDSN(t *testing.T) {
	cfg := &Config{DB: DB{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DBDSN())
}
