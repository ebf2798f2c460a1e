package restreamer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// BuildTeeCommand assembles the ffmpeg command that copies one input to
// several flv outputs via the tee muxer. The result embeds stream keys, so
// it must never be logged.
func BuildTeeCommand(inputURL string, outputURLs []string, videoFilter string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-re -i %s -c:v copy -c:a copy -f tee -map 0:v -map 0:a ", inputURL)

	if videoFilter != "" {
		b.WriteString("-vf ")
		b.WriteString(videoFilter)
		b.WriteString(" ")
	}

	b.WriteString(`"`)
	for i, url := range outputURLs {
		if i > 0 {
			b.WriteString("|")
		}
		b.WriteString("[f=flv]")
		b.WriteString(url)
	}
	b.WriteString(`"`)
	return b.String()
}

// ListProcesses returns all processes known to the engine.
func (c *Client) ListProcesses(ctx context.Context) ([]Process, error) {
	var processes []Process
	if err := c.doRequest(ctx, http.MethodGet, "/api/v3/process", nil, &processes); err != nil {
		return nil, err
	}
	return processes, nil
}

// ResolveProcess finds the process whose reference matches ref and returns
// its engine-assigned id.
func (c *Client) ResolveProcess(ctx context.Context, ref string) (string, error) {
	processes, err := c.ListProcesses(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range processes {
		if p.Reference == ref {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("process not found: %s", ref)
}

// CreateProcess creates an autostarting tee process for the given input and
// outputs. The engine assigns the process id; it is recovered later by
// matching reference.
func (c *Client) CreateProcess(ctx context.Context, reference, inputURL string, outputURLs []string, videoFilter string) error {
	if len(outputURLs) == 0 {
		return fmt.Errorf("no output URLs")
	}

	req := createProcessRequest{
		Reference: reference,
		Command:   BuildTeeCommand(inputURL, outputURLs, videoFilter),
		Autostart: true,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v3/process", req, nil); err != nil {
		return err
	}

	c.logger.Info("Created process", "reference", reference, "outputs", len(outputURLs))
	return nil
}

// GetProcess fetches a single process by id.
func (c *Client) GetProcess(ctx context.Context, processID string) (*Process, error) {
	var process Process
	endpoint := "/api/v3/process/" + processID
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &process); err != nil {
		return nil, err
	}
	return &process, nil
}

// DeleteProcess removes a process from the engine, stopping it first if
// it is running.
func (c *Client) DeleteProcess(ctx context.Context, processID string) error {
	endpoint := "/api/v3/process/" + processID
	if err := c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return err
	}

	c.logger.Info("Deleted process", "process", processID)
	return nil
}

// CommandProcess sends a control command ("start", "stop" or "restart") to
// a process.
func (c *Client) CommandProcess(ctx context.Context, processID, command string) error {
	endpoint := "/api/v3/process/" + processID + "/command"
	req := processCommandRequest{Command: command}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, req, nil); err != nil {
		return err
	}

	c.logger.Info("Sent process command", "process", processID, "command", command)
	return nil
}

// StartProcess starts a stopped process.
func (c *Client) StartProcess(ctx context.Context, processID string) error {
	return c.CommandProcess(ctx, processID, "start")
}

// StopProcess stops a running process without deleting it.
func (c *Client) StopProcess(ctx context.Context, processID string) error {
	return c.CommandProcess(ctx, processID, "stop")
}

// RestartProcess restarts a process.
func (c *Client) RestartProcess(ctx context.Context, processID string) error {
	return c.CommandProcess(ctx, processID, "restart")
}

// GetProcessState returns the runtime state and progress counters for a
// process.
func (c *Client) GetProcessState(ctx context.Context, processID string) (*ProcessState, error) {
	var state ProcessState
	endpoint := "/api/v3/process/" + processID + "/state"
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetProcessLogs returns the ffmpeg log lines the engine has collected for
// a process.
func (c *Client) GetProcessLogs(ctx context.Context, processID string) ([]LogEntry, error) {
	var entries []LogEntry
	endpoint := "/api/v3/process/" + processID + "/log"
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
