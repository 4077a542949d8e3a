package engine

import (
	"fortio.org/safecast"
	"github.com/tidwall/gjson"

	"github.com/AndreyAkinshin/conform/internal/diag"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// Decode parses the diagnostic JSON written by an engine:
//
//	{"process": [...], "documents": [{"uri": "...", "diagnostics": [...]}]}
//
// Each diagnostic is a string code, {"qname": {...}} or
// {"tally": {"code": [satisfied, notSatisfied, ok, warning, error]}}. A
// qname may also be given in Clark notation. Anything else is malformed.
func Decode(data []byte) (Output, error) {
	if !gjson.ValidBytes(data) {
		return Output{}, conformerrors.Malformedf("engine output is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Output{}, conformerrors.Malformedf("engine output must be a JSON object")
	}

	var out Output
	process, err := decodeList(root.Get("process"), "process")
	if err != nil {
		return Output{}, err
	}
	out.Process = process

	docs := root.Get("documents")
	if docs.Exists() && !docs.IsArray() {
		return Output{}, conformerrors.Malformedf("documents must be an array")
	}
	for i, d := range docs.Array() {
		if !d.IsObject() {
			return Output{}, conformerrors.Malformedf("documents[%d] must be an object", i)
		}
		diags, err := decodeList(d.Get("diagnostics"), d.Get("uri").String())
		if err != nil {
			return Output{}, err
		}
		out.Documents = append(out.Documents, Document{URI: d.Get("uri").String(), Diagnostics: diags})
	}
	return out, nil
}

func decodeList(list gjson.Result, where string) ([]diag.Diagnostic, error) {
	if !list.Exists() || list.Type == gjson.Null {
		return nil, nil
	}
	if !list.IsArray() {
		return nil, conformerrors.Malformedf("%s: diagnostics must be an array", where)
	}
	var out []diag.Diagnostic
	for i, item := range list.Array() {
		d, err := decodeDiagnostic(item)
		if err != nil {
			return nil, conformerrors.Malformedf("%s[%d]: %v", where, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeDiagnostic(item gjson.Result) (diag.Diagnostic, error) {
	if item.Type == gjson.String {
		return diag.CodeDiagnostic{Code: item.String()}, nil
	}
	if !item.IsObject() {
		return nil, conformerrors.Malformedf("unexpected diagnostic %s", item.Raw)
	}
	if q := item.Get("qname"); q.Exists() {
		return decodeQName(q)
	}
	if t := item.Get("tally"); t.Exists() {
		return decodeTally(t)
	}
	return nil, conformerrors.Malformedf("unexpected diagnostic %s", item.Raw)
}

func decodeQName(q gjson.Result) (diag.Diagnostic, error) {
	if q.Type == gjson.String {
		parsed, ok := diag.ParseClark(q.String())
		if !ok || parsed.Local == "" {
			return nil, conformerrors.Malformedf("invalid qname %q", q.String())
		}
		return diag.QNameDiagnostic{QName: parsed}, nil
	}
	if !q.IsObject() || q.Get("local").String() == "" {
		return nil, conformerrors.Malformedf("invalid qname %s", q.Raw)
	}
	return diag.QNameDiagnostic{QName: diag.QName{
		Namespace: q.Get("namespace").String(),
		Prefix:    q.Get("prefix").String(),
		Local:     q.Get("local").String(),
	}}, nil
}

func decodeTally(t gjson.Result) (diag.Diagnostic, error) {
	if !t.IsObject() {
		return nil, conformerrors.Malformedf("tally must be an object")
	}
	var (
		tally diag.TallyDiagnostic
		err   error
	)
	t.ForEach(func(key, value gjson.Result) bool {
		counts := value.Array()
		if !value.IsArray() || len(counts) != 5 {
			err = conformerrors.Malformedf("tally %q must have five counts", key.String())
			return false
		}
		var n [5]int
		for i, c := range counts {
			if c.Type != gjson.Number {
				err = conformerrors.Malformedf("tally %q count %d is not a number", key.String(), i)
				return false
			}
			v, convErr := safecast.Convert[int](c.Num)
			if convErr != nil || v < 0 {
				err = conformerrors.Malformedf("tally %q count %d is not a non-negative integer: %s", key.String(), i, c.Raw)
				return false
			}
			n[i] = v
		}
		tally.Entries = append(tally.Entries, diag.TallyEntry{
			Code: key.String(),
			Tally: diag.Tally{
				Satisfied:    n[0],
				NotSatisfied: n[1],
				Ok:           n[2],
				Warning:      n[3],
				Error:        n[4],
			},
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return tally, nil
}
