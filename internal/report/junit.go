package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

// JUnit XML structures, one testcase element per variation grouped into one
// testsuite per testcase document.

type junitTestSuites struct {
	XMLName  xml.Name          `xml:"testsuites"`
	Name     string            `xml:"name,attr"`
	Tests    int               `xml:"tests,attr"`
	Failures int               `xml:"failures,attr"`
	Errors   int               `xml:"errors,attr"`
	Skipped  int               `xml:"skipped,attr"`
	Time     string            `xml:"time,attr"`
	Suites   []*junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

// WriteJUnit renders results as JUnit XML. Expected failures are reported
// as skipped so CI dashboards do not count them.
func WriteJUnit(w io.Writer, name string, results []testcase.Result, expected ExpectedFailures) error {
	root := junitTestSuites{Name: name}
	index := map[string]*junitTestSuite{}
	elapsed := map[*junitTestSuite]float64{}
	var total float64

	for _, r := range results {
		base := r.Variation.Base
		suite, ok := index[base]
		if !ok {
			suite = &junitTestSuite{Name: base}
			index[base] = suite
			root.Suites = append(root.Suites, suite)
		}

		tc := junitTestCase{
			Name:      r.Variation.ID,
			Classname: strings.TrimSuffix(base, path.Ext(base)),
			Time:      seconds(r.Duration.Seconds()),
		}
		switch status := r.Status(); {
		case status == testcase.StatusSkip:
			tc.Skipped = &junitSkipped{Message: "filtered"}
			suite.Skipped++
		case status == testcase.StatusPass:
		case expected.Match(r.Variation.FullID()):
			tc.Skipped = &junitSkipped{Message: "expected failure"}
			suite.Skipped++
		case status == testcase.StatusError:
			tc.Error = &junitMessage{
				Message: r.Error,
				Type:    r.ErrorKind.String(),
				Content: r.Report(),
			}
			suite.Errors++
		default:
			tc.Failure = &junitMessage{
				Message: r.String(),
				Type:    "constraints",
				Content: r.Report(),
			}
			suite.Failures++
		}

		suite.Tests++
		suite.TestCases = append(suite.TestCases, tc)
		elapsed[suite] += r.Duration.Seconds()
		total += r.Duration.Seconds()
	}

	for _, suite := range root.Suites {
		suite.Time = seconds(elapsed[suite])
		root.Tests += suite.Tests
		root.Failures += suite.Failures
		root.Errors += suite.Errors
		root.Skipped += suite.Skipped
	}
	root.Time = seconds(total)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteJUnitFile writes the JUnit report to filename.
func WriteJUnitFile(filename, name string, results []testcase.Result, expected ExpectedFailures) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return conformerrors.Wrap(err, fmt.Sprintf("creating JUnit report %s", filename))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = conformerrors.Wrap(cerr, fmt.Sprintf("closing JUnit report %s", filename))
		}
	}()
	if err := WriteJUnit(f, name, results, expected); err != nil {
		return conformerrors.Wrap(err, fmt.Sprintf("writing JUnit report %s", filename))
	}
	return nil
}
