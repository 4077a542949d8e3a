// Package engine defines the contract of the target validation engine that a
// conformance run drives, and the built-in engines.
//
// An engine receives resolved invocation options and reports diagnostics on
// two channels: a process-level list and one list per loaded document.
// Engines are created through a Registry owned by the caller; there is no
// process-wide engine table.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/AndreyAkinshin/conform/internal/diag"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// Option keys shared by the harness and the engines.
const (
	KeyEntrypointFile = "entrypointFile"
	KeyPluginOptions  = "pluginOptions"
	KeyPlugins        = "plugins"
	KeyCalcs          = "calcs"
)

// Options is the resolved invocation configuration for one run.
type Options map[string]any

// EntrypointFile returns the entry point string, or "" when unset.
func (o Options) EntrypointFile() string {
	s, _ := o[KeyEntrypointFile].(string)
	return s
}

// JSON renders o as indented JSON with sorted keys.
func (o Options) JSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(map[string]any(o)); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Document is the diagnostic list of one loaded document.
type Document struct {
	URI         string
	Diagnostics []diag.Diagnostic
}

// Output is everything an engine reported during a run.
type Output struct {
	Process   []diag.Diagnostic
	Documents []Document
}

// Diagnostics returns the process-level diagnostics followed by the
// diagnostics of each document.
func (o Output) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(o.Process))
	out = append(out, o.Process...)
	for _, d := range o.Documents {
		out = append(out, d.Diagnostics...)
	}
	return out
}

// Engine runs one variation. Implementations must not keep state between
// runs that changes their results.
type Engine interface {
	Name() string
	Run(ctx context.Context, opts Options) (Output, error)
}

// Settings configures an engine instance.
type Settings struct {
	// Command is the program and arguments of the command engine.
	Command []string `json:"command,omitempty" msgpack:"command"`
	// Dir is the working directory of the command engine.
	Dir string            `json:"dir,omitempty" msgpack:"dir"`
	Env map[string]string `json:"env,omitempty" msgpack:"env"`
	// Suffix is appended to each entry document to find replay sidecars.
	Suffix string `json:"suffix,omitempty" msgpack:"suffix"`
}

// Factory creates an engine from settings.
type Factory func(Settings) (Engine, error)

// Registry maps engine names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a new registry holding the built-in engines.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(CommandEngineName, NewCommand)
	r.MustRegister(ReplayEngineName, NewReplay)
	return r
}

// Register adds a factory. Registering a name twice is a configuration
// error.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return conformerrors.Configf("engine %q is already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// New creates the named engine.
func (r *Registry) New(name string, s Settings) (Engine, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, conformerrors.NotFound("engine", name)
	}
	return f(s)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
