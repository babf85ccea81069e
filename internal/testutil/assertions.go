package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the run logged msg, optionally followed by the
// given key=value attributes on the same line.
func AssertLogged(t *testing.T, result *HarnessResult, msg string, attrs ...string) {
	t.Helper()

	for _, line := range strings.Split(result.LogOutput, "\n") {
		if !strings.Contains(line, msg) {
			continue
		}
		missing := false
		for _, a := range attrs {
			if !strings.Contains(line, a) {
				missing = true
				break
			}
		}
		if !missing {
			return
		}
	}
	require.Failf(t, "log line not found", "expected %q with %v in:\n%s", msg, attrs, result.LogOutput)
}
