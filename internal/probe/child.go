package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// RunChild is the entrypoint for the self-exec child process: it looks up
// the named probe, runs it against params with a hard ceiling of
// maxDuration, and returns the ResultMessage the parent expects on
// stdout. It never returns an error — any failure to locate or execute
// the probe is folded into a ResultStatusError result, since a crashed
// or hung child is indistinguishable to the parent from one that never
// started.
func RunChild(probeName, params string, runID int64, maxDuration time.Duration) ResultMessage {
	p, err := Lookup(probeName)
	if err != nil {
		return ResultMessage{RunID: runID, Status: string(models.ResultStatusError), Data: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), maxDuration)
	defer cancel()

	status, data, err := p.Run(ctx, json.RawMessage(params))
	if err != nil {
		return ResultMessage{RunID: runID, Status: string(models.ResultStatusError), Data: err.Error()}
	}
	if !models.ValidResultStatus(string(status)) {
		return ResultMessage{RunID: runID, Status: string(models.ResultStatusError),
			Data: fmt.Sprintf("probe returned invalid status %q", status)}
	}
	return ResultMessage{RunID: runID, Status: string(status), Data: data}
}
