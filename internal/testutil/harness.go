package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/procgrid/internal/app"
	"github.com/specialistvlad/procgrid/internal/hclconfig"
	"github.com/specialistvlad/procgrid/internal/naming"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Dir       string // temp dir the files were written to
	Output    string
	LogOutput string
	Err       error
}

// Path returns the absolute path of a file written by the harness.
func (r *HarnessResult) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// Env returns a lookup serving only the given variables.
func Env(vars map[string]string) naming.LookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// WriteFiles writes files, keyed by relative path, into a fresh temp dir
// and returns it.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}
	return dir
}

// RunApp writes files to a temp dir and runs the app over it. Relative
// entries of cfg.Paths, cfg.SteeringFile and cfg.OutPath are resolved
// against that dir; an empty Paths means the whole dir.
func RunApp(t *testing.T, files map[string]string, cfg app.Config, opts ...hclconfig.Option) *HarnessResult {
	t.Helper()
	return RunAppWithContext(context.Background(), t, files, cfg, opts...)
}

// RunAppWithContext is RunApp with a caller-provided context.
func RunAppWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config, opts ...hclconfig.Option) *HarnessResult {
	t.Helper()

	dir := WriteFiles(t, files)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{dir}
	}
	for i, p := range cfg.Paths {
		cfg.Paths[i] = resolve(p)
	}
	cfg.SteeringFile = resolve(cfg.SteeringFile)
	cfg.OutPath = resolve(cfg.OutPath)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	result := &HarnessResult{Dir: dir}
	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		result.Err = err
		return result
	}

	out := &SafeBuffer{}
	logBuffer := &SafeBuffer{}
	result.Err = app.NewApp(out, logBuffer, appConfig, opts...).Run(ctx)
	result.Output = out.String()
	result.LogOutput = logBuffer.String()

	if os.Getenv("PROCGRID_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
