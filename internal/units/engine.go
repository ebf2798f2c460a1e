package units

import (
	"context"

	"github.com/smazurov/multistream/internal/restreamer"
)

// Engine is the remote streaming engine surface the manager drives. The
// restreamer client satisfies it; tests substitute a fake.
type Engine interface {
	Ping(ctx context.Context) error
	ListProcesses(ctx context.Context) ([]restreamer.Process, error)
	ResolveProcess(ctx context.Context, ref string) (string, error)
	CreateProcess(ctx context.Context, reference, inputURL string, outputURLs []string, videoFilter string) error
	DeleteProcess(ctx context.Context, processID string) error
	GetProcessState(ctx context.Context, processID string) (*restreamer.ProcessState, error)
	AddOutput(ctx context.Context, processID, outputID, outputURL, videoFilter string) error
	RemoveOutput(ctx context.Context, processID, outputID string) error
	UpdateOutput(ctx context.Context, processID, outputID, outputURL, videoFilter string) error
	ListOutputs(ctx context.Context, processID string) ([]string, error)
	UpdateOutputEncoding(ctx context.Context, processID, outputID string, params restreamer.EncodingParams) error
}

var _ Engine = (*restreamer.Client)(nil)
