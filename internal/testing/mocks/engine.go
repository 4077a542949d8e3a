// Package mocks provides shared test doubles for conform packages.
package mocks

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/AndreyAkinshin/conform/internal/diag"
	"github.com/AndreyAkinshin/conform/internal/engine"
)

// Engine implements engine.Engine for testing.
// Use NewEngine() to create instances with a fluent builder API.
type Engine struct {
	name   string
	output engine.Output
	err    error

	// RunFunc is called by Run. If nil, Run returns the configured output
	// and error.
	RunFunc func(ctx context.Context, opts engine.Options) (engine.Output, error)

	// Execution tracking (thread-safe)
	runCount int32
	mu       sync.Mutex
	history  []engine.Options
}

// NewEngine creates a new mock engine with the given name.
func NewEngine(name string) *Engine {
	return &Engine{name: name}
}

// WithCodes reports the codes as process-level diagnostics.
func (m *Engine) WithCodes(codes ...string) *Engine {
	for _, c := range codes {
		m.output.Process = append(m.output.Process, diag.CodeDiagnostic{Code: c})
	}
	return m
}

// WithDocument adds a document with its diagnostics.
func (m *Engine) WithDocument(uri string, diags ...diag.Diagnostic) *Engine {
	m.output.Documents = append(m.output.Documents, engine.Document{URI: uri, Diagnostics: diags})
	return m
}

// WithOutput sets the complete output.
func (m *Engine) WithOutput(out engine.Output) *Engine {
	m.output = out
	return m
}

// WithError makes Run fail with err.
func (m *Engine) WithError(err error) *Engine {
	m.err = err
	return m
}

// WithRunFunc sets the function called by Run.
func (m *Engine) WithRunFunc(fn func(ctx context.Context, opts engine.Options) (engine.Output, error)) *Engine {
	m.RunFunc = fn
	return m
}

// Factory returns an engine.Factory that always yields m.
func (m *Engine) Factory() engine.Factory {
	return func(engine.Settings) (engine.Engine, error) { return m, nil }
}

// engine.Engine interface implementation

func (m *Engine) Name() string { return m.name }

func (m *Engine) Run(ctx context.Context, opts engine.Options) (engine.Output, error) {
	atomic.AddInt32(&m.runCount, 1)
	m.mu.Lock()
	m.history = append(m.history, maps.Clone(opts))
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, opts)
	}
	return m.output, m.err
}

// Test inspection methods

// RunCount returns the number of times Run was called.
func (m *Engine) RunCount() int32 {
	return atomic.LoadInt32(&m.runCount)
}

// LastOptions returns the options of the most recent Run, or nil.
func (m *Engine) LastOptions() engine.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return nil
	}
	return m.history[len(m.history)-1]
}

// History returns the options of every Run in call order.
func (m *Engine) History() []engine.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]engine.Options, len(m.history))
	copy(result, m.history)
	return result
}

// Reset clears execution tracking state.
func (m *Engine) Reset() {
	atomic.StoreInt32(&m.runCount, 0)
	m.mu.Lock()
	m.history = nil
	m.mu.Unlock()
}
