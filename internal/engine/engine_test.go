package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/conform/internal/diag"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	out, err := Decode([]byte(`{
		"process": ["xbrl.4.9", {"qname": {"namespace": "http://xbrl.org/2005/xbrldt/errors", "prefix": "xbrldte", "local": "HypercubeDimensionError"}}],
		"documents": [
			{"uri": "a.xml", "diagnostics": [{"qname": "{urn:x}E"}, {"tally": {"assertion1": [2, 1, 0, 3, 4]}}]},
			{"uri": "b.xml"}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, []diag.Diagnostic{
		diag.CodeDiagnostic{Code: "xbrl.4.9"},
		diag.QNameDiagnostic{QName: diag.QName{
			Namespace: "http://xbrl.org/2005/xbrldt/errors",
			Prefix:    "xbrldte",
			Local:     "HypercubeDimensionError",
		}},
	}, out.Process)

	require.Len(t, out.Documents, 2)
	assert.Equal(t, "a.xml", out.Documents[0].URI)
	assert.Equal(t, []diag.Diagnostic{
		diag.QNameDiagnostic{QName: diag.QName{Namespace: "urn:x", Local: "E"}},
		diag.TallyDiagnostic{Entries: []diag.TallyEntry{{
			Code:  "assertion1",
			Tally: diag.Tally{Satisfied: 2, NotSatisfied: 1, Ok: 0, Warning: 3, Error: 4},
		}}},
	}, out.Documents[0].Diagnostics)
	assert.Empty(t, out.Documents[1].Diagnostics)

	assert.Len(t, out.Diagnostics(), 4)
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()

	out, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, out.Diagnostics())
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{"process": [`},
		{"not an object", `["a"]`},
		{"process not an array", `{"process": "a"}`},
		{"number diagnostic", `{"process": [42]}`},
		{"unknown object", `{"process": [{"code": "a"}]}`},
		{"qname without local", `{"process": [{"qname": {"namespace": "urn:x"}}]}`},
		{"unbalanced clark", `{"process": [{"qname": "{urn:x"}]}`},
		{"short tally", `{"process": [{"tally": {"a": [1, 2]}}]}`},
		{"negative tally", `{"process": [{"tally": {"a": [1, -2, 0, 0, 0]}}]}`},
		{"fractional tally", `{"process": [{"tally": {"a": [1.5, 0, 0, 0, 0]}}]}`},
		{"string tally", `{"process": [{"tally": {"a": ["1", 0, 0, 0, 0]}}]}`},
		{"documents not an array", `{"documents": {}}`},
		{"document not an object", `{"documents": ["a.xml"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.Equal(t, conformerrors.KindMalformed, conformerrors.KindOf(err))
		})
	}
}

func TestOptions_JSON(t *testing.T) {
	t.Parallel()

	opts := Options{"validate": true, "entrypointFile": "a<b>.xml", "keepOpen": true}
	got, err := opts.JSON()
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"entrypointFile\": \"a<b>.xml\",\n    \"keepOpen\": true,\n    \"validate\": true\n}", got)
	assert.Equal(t, "a<b>.xml", opts.EntrypointFile())
	assert.Equal(t, "", Options{}.EntrypointFile())
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	assert.Equal(t, []string{CommandEngineName, ReplayEngineName}, r.Names())

	err := r.Register(ReplayEngineName, NewReplay)
	require.Error(t, err)
	assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))

	_, err = r.New("arelle", Settings{})
	require.Error(t, err)
	assert.Equal(t, conformerrors.KindNotFound, conformerrors.KindOf(err))

	e, err := r.New(ReplayEngineName, Settings{})
	require.NoError(t, err)
	assert.Equal(t, ReplayEngineName, e.Name())
}

func TestRegistry_Independent(t *testing.T) {
	t.Parallel()

	a := NewRegistry()
	b := NewRegistry()
	require.NoError(t, a.Register("x", NewReplay))
	assert.Equal(t, []string{"x"}, a.Names())
	assert.Empty(t, b.Names())
}

func TestEntryDocuments(t *testing.T) {
	t.Parallel()

	assert.Nil(t, EntryDocuments(""))
	assert.Equal(t, []string{"a.xml"}, EntryDocuments("a.xml"))
	assert.Equal(t, []string{"a.xml", "b.xml"}, EntryDocuments("a.xml|b.xml"))
	assert.Equal(t, []string{"d/x.htm", "d/y.htm"}, EntryDocuments("d/_IXDS#?#d/x.htm#?#d/y.htm"))
}

func TestReplay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.xml")
	b := filepath.Join(dir, "b.xml")
	require.NoError(t, os.WriteFile(a+DefaultReplaySuffix, []byte(`{"process": ["e1"], "documents": [{"uri": "a.xml", "diagnostics": ["e2"]}]}`), 0o644))

	e, err := NewReplay(Settings{})
	require.NoError(t, err)

	out, err := e.Run(context.Background(), Options{KeyEntrypointFile: a + EntrySeparator + b})
	require.NoError(t, err)
	assert.Equal(t, []diag.Diagnostic{
		diag.CodeDiagnostic{Code: "e1"},
		diag.CodeDiagnostic{Code: "e2"},
	}, out.Diagnostics())
}

func TestReplay_CustomSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.xml")
	require.NoError(t, os.WriteFile(a+".out", []byte(`{"process": [{"qname": "{urn:x}E"}]}`), 0o644))

	e, err := NewReplay(Settings{Suffix: ".out"})
	require.NoError(t, err)

	out, err := e.Run(context.Background(), Options{KeyEntrypointFile: a})
	require.NoError(t, err)
	assert.Equal(t, []diag.Diagnostic{
		diag.QNameDiagnostic{QName: diag.QName{Namespace: "urn:x", Local: "E"}},
	}, out.Process)
}

func TestReplay_Malformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.xml")
	require.NoError(t, os.WriteFile(a+DefaultReplaySuffix, []byte(`{"process": [7]}`), 0o644))

	e, err := NewReplay(Settings{})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), Options{KeyEntrypointFile: a})
	require.Error(t, err)
	assert.Equal(t, conformerrors.KindMalformed, conformerrors.KindOf(err))
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("command engine tests use sh")
	}
}

func TestCommand_RequiresCommand(t *testing.T) {
	t.Parallel()

	_, err := NewCommand(Settings{})
	require.Error(t, err)
	assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))
}

func TestCommand_Run(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	// The script echoes the entry point it received on stdin as a code.
	script := `read -r line; code=$(printf '%s' "$line" | sed 's/.*"entrypointFile":"\([^"]*\)".*/\1/'); printf '{"process": ["%s", "%s"]}' "$code" "$CONFORM_TEST_VALUE"`
	e, err := NewCommand(Settings{
		Command: []string{"sh", "-c", script},
		Env:     map[string]string{"CONFORM_TEST_VALUE": "from-env"},
	})
	require.NoError(t, err)
	assert.Equal(t, CommandEngineName, e.Name())

	out, err := e.Run(context.Background(), Options{KeyEntrypointFile: "a.xml"})
	require.NoError(t, err)
	assert.Equal(t, []diag.Diagnostic{
		diag.CodeDiagnostic{Code: "a.xml"},
		diag.CodeDiagnostic{Code: "from-env"},
	}, out.Process)
}

func TestCommand_Failure(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	e, err := NewCommand(Settings{Command: []string{"sh", "-c", "echo boom >&2; exit 3"}})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "boom"), "error %q should include stderr", err)
}

func TestCommand_MissingExecutable(t *testing.T) {
	t.Parallel()

	e, err := NewCommand(Settings{Command: []string{"conform-engine-that-does-not-exist"}})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, conformerrors.KindEnvironment, conformerrors.KindOf(err))
}

func TestCommand_Timeout(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	e, err := NewCommand(Settings{Command: []string{"sleep", "5"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = e.Run(ctx, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}
