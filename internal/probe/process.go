package probe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// ResultMessage is what a probe child process reports back to the Tests
// Manager over its stdout, one JSON line, matching the original's
// ResultMessage dataclass (run_id, status, data).
type ResultMessage struct {
	RunID  int64  `json:"run_id"`
	Status string `json:"status"`
	Data   string `json:"data"`
}

// Spawn starts a child process running this same binary with
// "--task probe --probe <name>", the self-exec pattern spec.md §5
// describes ("each Run is an independent child process"). params is the
// Test's opaque test_params blob, passed via a flag rather than
// environment or stdin so a `ps` listing never requires permission to
// read another process's environment to diagnose it. results receives
// the single ResultMessage line the child writes to stdout before
// exiting; the goroutine exits once that line is read or the process's
// stdout closes.
func Spawn(probeName, params string, runID int64, results chan<- ResultMessage) (*os.Process, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("probe: resolving own executable: %w", err)
	}

	cmd := exec.Command(self,
		"--task", "probe",
		"--probe", probeName,
		"--params", params,
		"--run-id", fmt.Sprintf("%d", runID),
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("probe: opening child stdout: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("probe: starting child process: %w", err)
	}

	go harvestResult(stdout, runID, results)
	go func() { _ = cmd.Wait() }() // reap the child; exit status is carried in the result line, not the process status

	return cmd.Process, nil
}

func harvestResult(stdout io.Reader, runID int64, results chan<- ResultMessage) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var msg ResultMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		results <- msg
		return
	}
	// Stdout closed without a result line: the child crashed before
	// reporting, so a crashed result is reported in its place and the Tests
	// Manager records it like any other result.
	results <- ResultMessage{RunID: runID, Status: string(models.ResultStatusCrashed)}
}

// IsAlive reports whether pid still refers to a running process, the Go
// analogue of psutil.pid_exists.
func IsAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without affecting the process, matching psutil.pid_exists.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// Terminate sends SIGTERM, the first escalation step (spec.md §5:
// terminate → kill → zombie).
func Terminate(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL, the second escalation step.
func Kill(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(syscall.SIGKILL)
}
