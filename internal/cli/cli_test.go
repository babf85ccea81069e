package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalHCL = `
process = "MIN"

source "EmptySource" {}

producer "Counter" "count" {
  step = 1
}

path "p" {
  modules = count
}
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(minimalHCL), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	err := Execute(context.Background(), args, out, io.Discard)
	return out.String(), err
}

func TestExecute_UsageErrors(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "unknown flag", args: []string{"assemble", "--nope", "x.hcl"}, contains: "unknown flag: --nope"},
		{name: "no paths", args: []string{"assemble"}, contains: "requires at least one configuration"},
		{name: "bad log format", args: []string{"assemble", "--log-format", "xml", "x.hcl"}, contains: "invalid log-format"},
		{name: "bad log level", args: []string{"dump", "--log-level", "loud", "x.hcl"}, contains: "invalid log-level"},
		{name: "bad output format", args: []string{"assemble", "--format", "toml", "x.hcl"}, contains: "toml"},
		{name: "test and full", args: []string{"assemble", "--test", "--full", "x.hcl"}, contains: "[full test] were all set"},
		{name: "call without method", args: []string{"call", "http://localhost"}, contains: "endpoint and a method"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			require.Error(t, err)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %T", err)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.contains)
		})
	}
}

func TestExecute_TestAndFullAreExclusive(t *testing.T) {
	for _, cmd := range []string{"assemble", "dump"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := execute(t, cmd, "--test", "--full", writeConfig(t))
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %T", err)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, "none of the others can be")
		})
	}
}

func TestExecute_Assemble(t *testing.T) {
	out, err := execute(t, "assemble", "--full", "--format", "json", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, `"process": "MIN"`)
	assert.Contains(t, out, `"label": "count"`)
}

func TestExecute_AssembleToFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.hcl")
	out, err := execute(t, "assemble", "--test", "-o", target, writeConfig(t))
	require.NoError(t, err)
	assert.Empty(t, out)

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `producer "Counter" "count"`)
}

func TestExecute_Dump(t *testing.T) {
	out, err := execute(t, "dump", "--log-level", "error", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, `process = "MIN"`)
}

func TestExecute_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte("<methodResponse/>"))
	}))
	defer srv.Close()

	out, err := execute(t, "call", srv.URL, "status")
	require.NoError(t, err)
	assert.Equal(t, "<methodResponse/>\n", out)
}

func TestExecute_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "assemble")
}
