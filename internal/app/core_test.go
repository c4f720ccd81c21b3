package app

import (
	"testing"
	"time"

	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Server:     config.Server{ShutdownTimeout: 5 * time.Second},
		Dispatcher: config.Dispatcher{Workers: 1, DrainTimeout: time.Second},
		Upload:     config.Upload{Dir: t.TempDir()},
		Uploader:   config.Uploader{Workers: 1, QueueSize: 1, Timeout: time.Second},
		Codec:      config.Codec{JPEGQuality: 85},
		Reporter:   config.Reporter{BufferSize: 1, Timeout: time.Second},
		Presets: config.Presets{
			"avatar": {Tasks: []config.Task{{Name: "small", Actions: [][]string{{"resize", "10", "10"}}}}},
		},
	}
}

func TestCoreFailedStartReleasesResources(t *testing.T) {
	logger := zerolog.Nop()

	core, err := NewCore(localConfig(t), &logger)
	require.NoError(t, err)
	require.NoError(t, core.Start())
	assert.Equal(t, worker.StateRunning, core.Dispatcher.State())

	err = core.Start()
	require.ErrorIs(t, err, worker.ErrNotIdle)
	assert.Equal(t, worker.StateStopped, core.Dispatcher.State())
}
