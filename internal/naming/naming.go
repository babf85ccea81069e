// Package naming builds the strings configurations pass to external
// collaborators: output file paths and conditions database connect strings.
package naming

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissingEnv is returned when an environment variable used to build a
// path is unset or empty.
var ErrMissingEnv = errors.New("environment variable not set")

// ErrInvalidConnect is returned for connect strings with an unknown scheme.
var ErrInvalidConnect = errors.New("invalid connect string")

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// Env returns the value of the variable name, failing with ErrMissingEnv
// instead of letting an empty value produce a malformed path. A nil lookup
// uses the process environment.
func Env(lookup LookupFunc, name string) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, name)
	}
	return v, nil
}

// OutputFile returns `<base>/output/<name>_<sample>.root`. base is used
// verbatim apart from one trailing slash, so URLs such as
// `root://host//eos/...` and relative bases keep their form.
func OutputFile(base, name, sample string) (string, error) {
	if base == "" || name == "" || sample == "" {
		return "", fmt.Errorf("output file needs a base directory, a name and a sample, got %q, %q, %q", base, name, sample)
	}
	return strings.TrimSuffix(base, "/") + "/output/" + name + "_" + sample + ".root", nil
}

// Connect string schemes understood by the conditions database layer.
const (
	SchemeSQLite   = "sqlite_file"
	SchemeFrontier = "frontier"
	SchemeOracle   = "oracle"
)

// SQLiteConnect returns `sqlite_file:<path>`.
func SQLiteConnect(file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("%w: empty sqlite file path", ErrInvalidConnect)
	}
	return SchemeSQLite + ":" + file, nil
}

// FrontierConnect returns `frontier://<service>/<schema>`.
func FrontierConnect(service, schema string) (string, error) {
	if service == "" || schema == "" {
		return "", fmt.Errorf("%w: frontier needs a service and a schema", ErrInvalidConnect)
	}
	return SchemeFrontier + "://" + service + "/" + schema, nil
}

// Connect is a parsed connect string.
type Connect struct {
	Scheme string
	// Target is the file path for sqlite, `service/schema` otherwise.
	Target string
}

// String renders the connect string.
func (c Connect) String() string {
	if c.Scheme == SchemeSQLite {
		return c.Scheme + ":" + c.Target
	}
	return c.Scheme + "://" + c.Target
}

// ParseConnect splits and validates a connect string.
func ParseConnect(s string) (Connect, error) {
	if rest, ok := strings.CutPrefix(s, SchemeSQLite+":"); ok {
		if rest == "" {
			return Connect{}, fmt.Errorf("%w: %q has no file path", ErrInvalidConnect, s)
		}
		return Connect{Scheme: SchemeSQLite, Target: rest}, nil
	}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || (scheme != SchemeFrontier && scheme != SchemeOracle) {
		return Connect{}, fmt.Errorf("%w: %q", ErrInvalidConnect, s)
	}
	service, schema, ok := strings.Cut(rest, "/")
	if !ok || service == "" || schema == "" {
		return Connect{}, fmt.Errorf("%w: %q must be %s://<service>/<schema>", ErrInvalidConnect, s, scheme)
	}
	return Connect{Scheme: scheme, Target: rest}, nil
}
