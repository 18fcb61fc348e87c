package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/logging"
)

func TestSink_WritesAppendOnlyLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	sink, err := logging.OpenSink(path)
	require.NoError(t, err)
	sink.Info("started", "component", "calendar")
	sink.Error("probe failed", "id_test", 42)
	require.NoError(t, sink.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "INFO: started")
	assert.Contains(t, string(contents), "ERROR: probe failed")
	assert.Equal(t, path, sink.Path())
}
