package probe

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

func init() {
	Register("tcp_connect", ProbeFunc(runTCPConnect))
	Register("noop", ProbeFunc(runNoop))
}

// tcpConnectParams is the test_params shape for the built-in tcp_connect
// probe: dial address:port, succeed if the connection opens within
// timeout_ms.
type tcpConnectParams struct {
	Address   string `json:"address"`
	Port      int    `json:"port"`
	TimeoutMS int    `json:"timeout_ms"`
}

// runTCPConnect is a minimal, illustrative built-in probe: real probe
// implementations (ICMP, DNS, TLS, SQL, HTTP, etc.) are out of scope per
// spec.md §1 and substitutable without altering the core design.
func runTCPConnect(ctx context.Context, rawParams json.RawMessage) (models.ResultStatus, string, error) {
	var params tcpConnectParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return models.ResultStatusError, "", err
	}
	timeout := time.Duration(params.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(params.Address, strconv.Itoa(params.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return models.ResultStatusError, err.Error(), nil
	}
	_ = conn.Close()
	return models.ResultStatusSuccess, "connected", nil
}

// runNoop always succeeds immediately; used by tests exercising the
// process lifecycle without depending on network access.
func runNoop(_ context.Context, _ json.RawMessage) (models.ResultStatus, string, error) {
	return models.ResultStatusSuccess, "ok", nil
}
