package hclconfig

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/dag"
	"github.com/specialistvlad/procgrid/internal/fsutil"
	"github.com/specialistvlad/procgrid/internal/naming"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/specialistvlad/procgrid/internal/steering"
	"github.com/zclconf/go-cty/cty"
)

// Extension is the file extension of configuration files.
const Extension = ".hcl"

// ErrLoadCycle is returned when a file loads itself, directly or through
// other files.
var ErrLoadCycle = errors.New("load cycle detected")

// Config is the result of loading one or more configuration files.
type Config struct {
	Process  *process.Process
	Profiles steering.Profiles
	Files    []string
}

type loadedFile struct {
	proc     *process.Process
	profiles steering.Profiles
}

// Loader reads configuration files. Each file is executed once per Loader:
// loading it again, directly or through `load`, returns the same process so
// its objects are shared by reference.
type Loader struct {
	parser *hclparse.Parser
	env    naming.LookupFunc
	files  map[string]*loadedFile
	loads  *dag.Graph
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnv sets the environment lookup used by env(). The default is the
// process environment.
func WithEnv(lookup naming.LookupFunc) Option {
	return func(l *Loader) { l.env = lookup }
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		parser: hclparse.NewParser(),
		files:  make(map[string]*loadedFile),
		loads:  dag.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the given files and directories. A single file yields its own
// process; several files are loaded into a fresh process in the order given,
// directories contributing their .hcl files in lexical order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindAll(paths, Extension)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %v", Extension, paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	if len(files) == 1 {
		lf, err := l.loadFile(ctx, files[0], "")
		if err != nil {
			return nil, err
		}
		return &Config{Process: lf.proc, Profiles: lf.profiles, Files: files}, nil
	}

	cfg := &Config{Process: process.New(""), Files: files}
	for _, file := range files {
		lf, err := l.loadFile(ctx, file, "")
		if err != nil {
			return nil, err
		}
		if err := cfg.Process.Load(ctx, lf.proc); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		if cfg.Process.Name() == "" {
			cfg.Process.SetName(lf.proc.Name())
		}
		mergeProfiles(&cfg.Profiles, lf.profiles)
	}

	logger.Debug("HCL loading complete.", "process", cfg.Process.Name(), "labels", len(cfg.Process.Labels()))
	return cfg, nil
}

// LoadBytes executes configuration source held in memory. name is used for
// diagnostics and as the base for relative `load` paths.
func (l *Loader) LoadBytes(ctx context.Context, name string, src []byte) (*Config, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}
	file, diags := l.parser.ParseHCL(src, abs)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", name, diags)
	}
	lf, err := l.execute(ctx, abs, file)
	if err != nil {
		return nil, err
	}
	return &Config{Process: lf.proc, Profiles: lf.profiles, Files: []string{abs}}, nil
}

// loadFile executes the file at path once, returning the cached result on
// later calls. from is the loading file, or empty for a top-level load.
func (l *Loader) loadFile(ctx context.Context, path, from string) (*loadedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if from != "" {
		err := l.loads.Connect(from, abs)
		if err == nil {
			err = l.loads.DetectCycles()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrLoadCycle, err)
		}
	} else {
		l.loads.AddNode(abs)
	}

	if lf, ok := l.files[abs]; ok {
		ctxlog.FromContext(ctx).Debug("Configuration file already loaded.", "file", abs)
		return lf, nil
	}

	file, diags := l.parser.ParseHCLFile(abs)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", abs, diags)
	}
	return l.execute(ctx, abs, file)
}

func (l *Loader) execute(ctx context.Context, abs string, file *hcl.File) (*loadedFile, error) {
	ctx, logger := ctxlog.With(ctx, "file", abs)
	logger.Debug("Executing configuration file.")

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("file %s is not in native HCL syntax", abs)
	}

	a := &assembler{
		loader: l,
		file:   abs,
		dir:    filepath.Dir(abs),
		proc:   process.New(""),
		locals: make(map[string]cty.Value),
	}
	if diags := a.run(ctx, body); diags.HasErrors() {
		return nil, fmt.Errorf("failed to assemble %s: %w", abs, &diagError{diags: diags, cause: a.cause})
	}

	lf := &loadedFile{proc: a.proc, profiles: a.profiles}
	l.files[abs] = lf
	logger.Debug("Configuration file executed.", "process", a.proc.Name(), "labels", len(a.proc.Labels()))
	return lf, nil
}

// mergeProfiles fills the empty profiles of dst from src.
func mergeProfiles(dst *steering.Profiles, src steering.Profiles) {
	if dst.Test.IsZero() {
		dst.Test = src.Test
	}
	if dst.Full.IsZero() {
		dst.Full = src.Full
	}
}
