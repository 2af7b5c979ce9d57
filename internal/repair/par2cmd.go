package repair

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/datallboy/nzbweaver/internal/platform"
)

// VerifyResult maps the documented par2 exit codes.
type VerifyResult int

const (
	VerifyClean      VerifyResult = iota // exit 0
	VerifyRepairable                     // exit 1
	VerifyUnusable                       // anything else
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyClean:
		return "clean"
	case VerifyRepairable:
		return "repairable"
	default:
		return "unusable"
	}
}

type CLIPar2 struct {
	BinaryPath string
}

// NewCLIPar2 uses the configured binary, or par2 from PATH when empty.
func NewCLIPar2(configured string) (*CLIPar2, error) {
	path, err := platform.ResolveBinary(configured, "par2")
	if err != nil {
		return nil, err
	}
	return &CLIPar2{BinaryPath: path}, nil
}

// Verify runs "par2 v" inside dir against the index file.
func (c *CLIPar2) Verify(ctx context.Context, dir, index string) (VerifyResult, error) {
	// 'v' is verify, '-q' is quiet
	cmd := exec.CommandContext(ctx, c.BinaryPath, "v", "-q", index)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	return classifyExit(err, output)
}

// Repair runs "par2 r" inside dir against the index file.
func (c *CLIPar2) Repair(ctx context.Context, dir, index string) error {
	// 'r' is repair
	cmd := exec.CommandContext(ctx, c.BinaryPath, "r", "-q", index)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("par2 repair failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func classifyExit(err error, output []byte) (VerifyResult, error) {
	if err == nil {
		return VerifyClean, nil
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		if exitError.ExitCode() == 1 {
			return VerifyRepairable, nil // Damaged but repairable
		}
		return VerifyUnusable, fmt.Errorf("par2 verify exited %d: %s", exitError.ExitCode(), string(output))
	}

	// Could not even start the binary
	return VerifyUnusable, fmt.Errorf("par2 verify: %w", err)
}
