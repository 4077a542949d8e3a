package diag

import "strings"

// QName is a namespace-qualified diagnostic identifier.
// Two QNames are equal when namespace and local name match; the prefix is
// only used for display.
type QName struct {
	Namespace string `json:"namespace,omitempty" msgpack:"namespace"`
	Prefix    string `json:"prefix,omitempty" msgpack:"prefix"`
	Local     string `json:"local" msgpack:"local"`
}

// String returns the prefixed form ("prefix:local"), or the local name
// when there is no prefix.
func (q QName) String() string {
	if q.Prefix != "" {
		return q.Prefix + ":" + q.Local
	}
	return q.Local
}

// Clark returns the Clark notation ("{namespace}local").
func (q QName) Clark() string {
	if q.Namespace != "" {
		return "{" + q.Namespace + "}" + q.Local
	}
	return q.Local
}

// Equal reports whether q and other name the same diagnostic.
func (q QName) Equal(other QName) bool {
	return q.Namespace == other.Namespace && q.Local == other.Local
}

// ParseClark parses "{namespace}local" or a bare local name.
// The second result is false when the braces are unbalanced.
func ParseClark(s string) (QName, bool) {
	if !strings.HasPrefix(s, "{") {
		if strings.ContainsAny(s, "{}") {
			return QName{}, false
		}
		return QName{Local: s}, true
	}
	end := strings.Index(s, "}")
	if end < 0 || end == len(s)-1 {
		return QName{}, false
	}
	return QName{Namespace: s[1:end], Local: s[end+1:]}, true
}
