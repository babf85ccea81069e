package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/hclconfig"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/specialistvlad/procgrid/internal/steering"
	"gopkg.in/yaml.v3"
)

// Handoff delivers a finalized process.
type Handoff interface {
	Deliver(ctx context.Context, proc *process.Process, plan *process.Plan) error
}

// Format is a rendering of an assembled process.
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats.
func Formats() []Format { return []Format{FormatHCL, FormatJSON, FormatYAML} }

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q: must be one of hcl, json or yaml", s)
}

// Document is the JSON and YAML rendering: the process and, once finalized,
// its plan.
type Document struct {
	Config *process.Snapshot `json:"config" yaml:"config"`
	Plan   *process.Plan     `json:"plan,omitempty" yaml:"plan,omitempty"`
}

// Render renders proc in format f. plan may be nil. The HCL rendering
// carries the configuration only; the plan follows from it.
func Render(proc *process.Process, plan *process.Plan, f Format) ([]byte, error) {
	switch f {
	case FormatHCL:
		return hclconfig.Dump(proc, steering.Profiles{}), nil
	case FormatJSON:
		out, err := json.MarshalIndent(Document{Config: proc.Snapshot(), Plan: plan}, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(Document{Config: proc.Snapshot(), Plan: plan})
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// File writes the rendered process to Path.
type File struct {
	Path   string
	Format Format
}

// Deliver implements Handoff.
func (f *File) Deliver(ctx context.Context, proc *process.Process, plan *process.Plan) error {
	logger := ctxlog.FromContext(ctx).With("handoff", "file", "path", f.Path, "format", f.Format)

	out, err := Render(proc, plan, f.Format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	logger.Info("Process written.", "bytes", len(out))
	return nil
}

// Envelope is the message sent to an execution engine.
type Envelope struct {
	ID      string            `json:"id"`
	Process string            `json:"process"`
	Plan    *process.Plan     `json:"plan"`
	Config  *process.Snapshot `json:"config"`
}

// NewEnvelope wraps a finalized process under a fresh id.
func NewEnvelope(proc *process.Process, plan *process.Plan) *Envelope {
	return &Envelope{
		ID:      uuid.NewString(),
		Process: proc.Name(),
		Plan:    plan,
		Config:  proc.Snapshot(),
	}
}

// payload converts the envelope into the generic JSON form the socket.io
// client serializes.
func (e *Envelope) payload() (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
