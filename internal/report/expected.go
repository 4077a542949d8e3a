package report

import "strings"

// ExpectedFailures is a list of variation IDs known not to pass. An entry
// matches a full ID equal to it or ending in "/" followed by it, so suites
// can list IDs relative to any directory above the testcase documents.
type ExpectedFailures []string

// Match reports whether fullID is listed.
func (e ExpectedFailures) Match(fullID string) bool {
	for _, id := range e {
		if id == "" {
			continue
		}
		if fullID == id || strings.HasSuffix(fullID, "/"+id) {
			return true
		}
	}
	return false
}
