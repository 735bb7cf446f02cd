package inference

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/config"
)

// Metrics is the structured result the model runner reports on stdout.
type Metrics struct {
	HealthScore int `json:"health_score"`
}

// Runner is the opaque inference contract: image bytes in, annotated image
// bytes plus metrics out.
type Runner interface {
	Infer(ctx context.Context, image []byte) ([]byte, Metrics, error)
}

// Subprocess runs the model in a separate interpreter process. The model
// runtime is deliberately kept out of this process; the contract is the
// script's CLI: it reads --input, writes --output, and prints metrics JSON
// on stdout.
type Subprocess struct {
	cfg config.InferenceConfig
}

// NewSubprocess creates a subprocess-backed runner.
func NewSubprocess(cfg config.InferenceConfig) *Subprocess {
	return &Subprocess{cfg: cfg}
}

// Infer executes one inference run. The context carries the configured
// timeout so a hung model process cannot tie up the request; every failure
// mode surfaces as an inference-coded error, with the message distinguishing
// a failed run from a broken output contract.
func (s *Subprocess) Infer(ctx context.Context, image []byte) ([]byte, Metrics, error) {
	var metrics Metrics

	dir, err := os.MkdirTemp("", "infer-*")
	if err != nil {
		return nil, metrics, apperr.Wrap(apperr.CodeInference, err, "failed to create work dir")
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input.jpg")
	outPath := filepath.Join(dir, "output.png")

	if err := os.WriteFile(inPath, image, 0o600); err != nil {
		return nil, metrics, apperr.Wrap(apperr.CodeInference, err, "failed to write input image")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout.Std())
	defer cancel()

	cmd := exec.CommandContext(ctx, s.cfg.Python, s.cfg.Script,
		"--model", s.cfg.ModelPath,
		"--input", inPath,
		"--output", outPath,
		"--size", s.cfg.InputSize,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.Output()
	if err != nil {
		return nil, metrics, apperr.Wrap(apperr.CodeInference, err,
			"model run failed: %s", strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(string(stdout))
	if out == "" {
		out = "{}"
	}
	if err := json.Unmarshal([]byte(out), &metrics); err != nil {
		return nil, metrics, apperr.Wrap(apperr.CodeInference, err, "model output is not valid metrics JSON")
	}

	result, err := os.ReadFile(outPath)
	if err != nil {
		return nil, metrics, apperr.Wrap(apperr.CodeInference, err, "model produced no output artifact")
	}

	return result, metrics, nil
}
