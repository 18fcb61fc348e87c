package responder_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/config"
	"github.com/rysavy-ondrej/project-inventor/internal/responder"
)

func TestResponder_AnswersVersionProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bind an ephemeral listener just to claim a free port, then hand
	// that port to the responder -- net.ListenUDP with Port 0 doesn't
	// report back which port the kernel picked unless we ask it first.
	probe, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	port := probe.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, probe.Close())

	svc := responder.NewService(config.ResponderConfig{IP: "127.0.0.1", Port: port})
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SetDeadline(time.Now().Add(2*time.Second)))
	_, err = client.Write([]byte("version"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "1", string(buf[:n]))
}

func TestResponder_UnknownCommandGetsNA(t *testing.T) {
	probe, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	port := probe.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, probe.Close())

	svc := responder.NewService(config.ResponderConfig{IP: "127.0.0.1", Port: port})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SetDeadline(time.Now().Add(2*time.Second)))
	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "N/A", string(buf[:n]))
}

func TestResponder_NotConfiguredStartsCleanly(t *testing.T) {
	svc := responder.NewService(config.ResponderConfig{})
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx))
	svc.Stop()
}
