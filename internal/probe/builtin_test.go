package probe_test

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
	"github.com/rysavy-ondrej/project-inventor/internal/probe"
)

func TestTCPConnect_Success(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	p, err := probe.Lookup("tcp_connect")
	require.NoError(t, err)

	params, _ := json.Marshal(map[string]any{"address": host, "port": port, "timeout_ms": 500})
	status, _, err := p.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, models.ResultStatusSuccess, status)
}

func TestTCPConnect_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // nothing listens here anymore

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	p, err := probe.Lookup("tcp_connect")
	require.NoError(t, err)

	params, _ := json.Marshal(map[string]any{"address": host, "port": port, "timeout_ms": 500})
	status, data, err := p.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, models.ResultStatusError, status)
	assert.NotEmpty(t, data)
}

func TestNoop_AlwaysSucceeds(t *testing.T) {
	p, err := probe.Lookup("noop")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	status, data, err := p.Run(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, models.ResultStatusSuccess, status)
	assert.Equal(t, "ok", data)
}
