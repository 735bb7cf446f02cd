package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/config"
)

// writeScript stands in for the real model runner: a shell script honoring
// the same CLI contract (--input/--output/--size, metrics JSON on stdout).
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runner.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newRunner(script string) *Subprocess {
	return NewSubprocess(config.InferenceConfig{
		Python:    "/bin/sh",
		Script:    script,
		ModelPath: "model.h5",
		InputSize: "224,224",
		Timeout:   config.Duration(5 * time.Second),
	})
}

const argParse = `
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out=$2; shift 2 ;;
    *) shift ;;
  esac
done
`

func TestInfer(t *testing.T) {
	script := writeScript(t, argParse+`
printf 'annotated' > "$out"
echo '{"health_score": 87}'
`)

	result, metrics, err := newRunner(script).Infer(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, []byte("annotated"), result)
	assert.Equal(t, 87, metrics.HealthScore)
}

func TestInferRunFailure(t *testing.T) {
	script := writeScript(t, `echo "model blew up" >&2; exit 3`)

	_, _, err := newRunner(script).Infer(context.Background(), []byte("jpeg-bytes"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInference, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "model run failed")
}

func TestInferBadMetrics(t *testing.T) {
	script := writeScript(t, argParse+`
printf 'annotated' > "$out"
echo 'this is not json'
`)

	_, _, err := newRunner(script).Infer(context.Background(), []byte("jpeg-bytes"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInference, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "metrics JSON")
}

func TestInferMissingArtifact(t *testing.T) {
	script := writeScript(t, `echo '{"health_score": 10}'`)

	_, _, err := newRunner(script).Infer(context.Background(), []byte("jpeg-bytes"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInference, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "output artifact")
}

func TestInferTimeout(t *testing.T) {
	script := writeScript(t, `sleep 30`)

	runner := NewSubprocess(config.InferenceConfig{
		Python:    "/bin/sh",
		Script:    script,
		ModelPath: "model.h5",
		InputSize: "224,224",
		Timeout:   config.Duration(100 * time.Millisecond),
	})

	start := time.Now()
	_, _, err := runner.Infer(context.Background(), []byte("jpeg-bytes"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInference, apperr.CodeOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}
