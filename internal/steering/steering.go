// Package steering switches a process between a quick smoke test and a full
// run. Two constant profiles are declared up front; one boolean selects which
// one is applied, and applying a profile touches only the input files, the
// event limit and the logging threshold.
package steering

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/specialistvlad/procgrid/internal/pset"
	"gopkg.in/yaml.v3"
)

// MessageLogger is the service type whose threshold carries the verbosity.
const MessageLogger = "MessageLogger"

// Verbosities accepted by the message logger, most verbose first.
var Verbosities = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

// DefaultBatchPatterns match hostnames of the batch system, where full runs happen.
var DefaultBatchPatterns = []string{"lxplus*", "lxbatch*"}

// Profile is one constant set of steering values. Zero fields are left alone
// by Apply.
type Profile struct {
	Files     []string `yaml:"files" hcl:"files,optional"`
	MaxEvents int64    `yaml:"max_events" hcl:"max_events,optional"`
	Verbosity string   `yaml:"verbosity" hcl:"verbosity,optional"`
}

// IsZero reports whether the profile sets nothing.
func (p Profile) IsZero() bool {
	return len(p.Files) == 0 && p.MaxEvents == 0 && p.Verbosity == ""
}

// Profiles holds the smoke test and full run profiles.
type Profiles struct {
	Test Profile `yaml:"test"`
	Full Profile `yaml:"full"`
}

// Select returns the test profile when test is true and the full profile
// otherwise.
func Select(profiles Profiles, test bool) Profile {
	if test {
		return profiles.Test
	}
	return profiles.Full
}

// DetectTest reports whether the current host should run a smoke test: any
// host not matching one of the batch patterns does. A malformed pattern is
// an error even when an earlier pattern matched.
func DetectTest(hostname string, batchPatterns []string) (bool, error) {
	if batchPatterns == nil {
		batchPatterns = DefaultBatchPatterns
	}
	test := true
	for _, pattern := range batchPatterns {
		ok, err := path.Match(pattern, hostname)
		if err != nil {
			return false, fmt.Errorf("batch host pattern %q: %w", pattern, err)
		}
		if ok {
			test = false
		}
	}
	return test, nil
}

// Validate checks the profile values.
func (p Profile) Validate() error {
	if p.MaxEvents < -1 {
		return fmt.Errorf("max_events must be -1 or positive, got %d", p.MaxEvents)
	}
	if p.Verbosity == "" {
		return nil
	}
	for _, v := range Verbosities {
		if v == p.Verbosity {
			return nil
		}
	}
	return fmt.Errorf("verbosity %q is not one of %s", p.Verbosity, strings.Join(Verbosities, ", "))
}

// Apply writes the profile into proc: the source fileNames, the event limit
// and the MessageLogger threshold. A MessageLogger service is declared when
// the process has none.
func Apply(ctx context.Context, proc *process.Process, profile Profile) error {
	logger := ctxlog.FromContext(ctx)
	if err := profile.Validate(); err != nil {
		return err
	}

	if len(profile.Files) > 0 {
		src := proc.Source()
		if src == nil {
			return fmt.Errorf("cannot set input files: %w", process.ErrNoSource)
		}
		if err := src.Params.Assign("fileNames", pset.Untracked(pset.VString(profile.Files...)), true); err != nil {
			return fmt.Errorf("setting source fileNames: %w", err)
		}
	}

	if profile.MaxEvents != 0 {
		proc.SetMaxEvents(profile.MaxEvents)
	}

	if profile.Verbosity != "" {
		ml, ok := proc.Service(MessageLogger)
		if !ok {
			ml = process.NewModule(MessageLogger, process.RoleService, nil)
			if err := proc.DeclareService(ml); err != nil {
				return err
			}
		}
		if err := ml.Params.Assign("threshold", pset.Untracked(pset.String(profile.Verbosity)), true); err != nil {
			return fmt.Errorf("setting %s threshold: %w", MessageLogger, err)
		}
	}

	logger.Debug("Applied steering profile.", "files", len(profile.Files), "max_events", profile.MaxEvents, "verbosity", profile.Verbosity)
	return nil
}

// LoadYAML decodes profiles from YAML:
//
//	test:
//	  files: [file:small.root]
//	  max_events: 100
//	  verbosity: DEBUG
//	full:
//	  files: [file:a.root, file:b.root]
//	  max_events: -1
func LoadYAML(r io.Reader) (Profiles, error) {
	var profiles Profiles
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&profiles); err != nil {
		return Profiles{}, fmt.Errorf("decoding steering profiles: %w", err)
	}
	if err := profiles.Test.Validate(); err != nil {
		return Profiles{}, fmt.Errorf("test profile: %w", err)
	}
	if err := profiles.Full.Validate(); err != nil {
		return Profiles{}, fmt.Errorf("full profile: %w", err)
	}
	return profiles, nil
}

// LoadFile reads profiles from a YAML file.
func LoadFile(name string) (Profiles, error) {
	f, err := os.Open(name)
	if err != nil {
		return Profiles{}, err
	}
	defer f.Close()
	return LoadYAML(f)
}
