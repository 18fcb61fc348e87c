package probe_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
	"github.com/rysavy-ondrej/project-inventor/internal/probe"
)

func TestRegistry_LookupBuiltins(t *testing.T) {
	_, err := probe.Lookup("noop")
	require.NoError(t, err)

	_, err = probe.Lookup("tcp_connect")
	require.NoError(t, err)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	_, err := probe.Lookup("does_not_exist")
	assert.Error(t, err)
}

func TestRegistry_RegisterCustomProbe(t *testing.T) {
	probe.Register("test_always_error", probe.ProbeFunc(
		func(_ context.Context, _ json.RawMessage) (models.ResultStatus, string, error) {
			return models.ResultStatusError, "nope", nil
		}))

	p, err := probe.Lookup("test_always_error")
	require.NoError(t, err)

	status, data, err := p.Run(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, models.ResultStatusError, status)
	assert.Equal(t, "nope", data)
}
