package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	// ReplayEngineName is the registry name of the replay engine.
	ReplayEngineName = "replay"
	// DefaultReplaySuffix is appended to an entry document to locate its
	// recorded diagnostics.
	DefaultReplaySuffix = ".diagnostics.json"

	// EntrySeparator joins entry points in the entrypointFile option.
	EntrySeparator = "|"
	// DocumentSetSeparator joins the documents of an inline document set.
	DocumentSetSeparator = "#?#"
	// DocumentSetName is the surrogate file name of an inline document set.
	DocumentSetName = "_IXDS"
)

type replayEngine struct {
	suffix string
}

// NewReplay returns an engine that reports previously recorded diagnostics.
// For every entry document it reads the sidecar file named by appending the
// suffix to the document path; a missing sidecar reports nothing.
func NewReplay(s Settings) (Engine, error) {
	suffix := s.Suffix
	if suffix == "" {
		suffix = DefaultReplaySuffix
	}
	return &replayEngine{suffix: suffix}, nil
}

func (e *replayEngine) Name() string { return ReplayEngineName }

func (e *replayEngine) Run(ctx context.Context, opts Options) (Output, error) {
	var out Output
	for _, doc := range EntryDocuments(opts.EntrypointFile()) {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		data, err := os.ReadFile(doc + e.suffix)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return Output{}, fmt.Errorf("failed to read recorded diagnostics for %s: %w", doc, err)
		}
		recorded, err := Decode(data)
		if err != nil {
			return Output{}, fmt.Errorf("%s%s: %w", doc, e.suffix, err)
		}
		out.Process = append(out.Process, recorded.Process...)
		out.Documents = append(out.Documents, recorded.Documents...)
	}
	return out, nil
}

// EntryDocuments expands an entrypointFile value into the documents it
// names. An inline document set contributes each of its members.
func EntryDocuments(entrypoint string) []string {
	if entrypoint == "" {
		return nil
	}
	var docs []string
	for _, entry := range strings.Split(entrypoint, EntrySeparator) {
		parts := strings.Split(entry, DocumentSetSeparator)
		if len(parts) > 1 && strings.HasSuffix(parts[0], DocumentSetName) {
			docs = append(docs, parts[1:]...)
			continue
		}
		docs = append(docs, entry)
	}
	return docs
}
