/*
 * ZDNS Copyright 2024 Regents of the University of Michigan
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not
 * use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
 * implied. See the License for the specific language governing
 * permissions and limitations under the License.
 */

// Package scenario loads declarative verification suites. A suite names a set of DNS queries
// and, for each, the expected response in the form accepted by the verify package.
//
//	vars:
//	  DOMAIN: default.service.arpa.
//	scenarios:
//	  - name: wifi host AAAA
//	    server: fd00:db8::1
//	    query: {name: "wifi-host.${DOMAIN}", type: AAAA}
//	    expect:
//	      question:
//	        - ["wifi-host.${DOMAIN}", IN, AAAA]
//	      answer:
//	        - ["wifi-host.${DOMAIN}", IN, AAAA, {prefix: "2402"}]
package scenario

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zmap/zverify/src/capture"
	"github.com/zmap/zverify/src/verify"
)

type Suite struct {
	Vars      map[string]string `yaml:"vars"`
	Scenarios []Scenario        `yaml:"scenarios"`

	// Path is the file the suite was loaded from, if any.
	Path string `yaml:"-"`
}

type Scenario struct {
	Name   string    `yaml:"name"`
	Server string    `yaml:"server"`
	Query  QuerySpec `yaml:"query"`
	// CaptureFile is saved dig output used instead of a live query. Relative paths are
	// resolved against the suite file.
	CaptureFile string     `yaml:"capture_file"`
	Expect      ExpectSpec `yaml:"expect"`
}

type QuerySpec struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Class string `yaml:"class"`
}

type ExpectSpec struct {
	Opcode     *string       `yaml:"opcode"`
	Status     *string       `yaml:"status"`
	Question   []PatternSpec `yaml:"question"`
	Answer     []PatternSpec `yaml:"answer"`
	Additional []PatternSpec `yaml:"additional"`
}

type PatternSpec []FieldSpec

// Load decodes a suite. Unknown keys are rejected.
func Load(r io.Reader) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Suite
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty suite")
		}
		return nil, errors.Wrap(err, "unable to decode suite")
	}
	for i, sc := range s.Scenarios {
		if sc.Name == "" {
			return nil, errors.Errorf("scenario #%d has no name", i+1)
		}
		if sc.CaptureFile == "" && sc.Query.Name == "" {
			return nil, errors.Errorf("scenario %q needs either a query or a capture_file", sc.Name)
		}
		for _, section := range []struct {
			name     verify.Section
			patterns []PatternSpec
		}{
			{verify.SectionQuestion, sc.Expect.Question},
			{verify.SectionAnswer, sc.Expect.Answer},
			{verify.SectionAdditional, sc.Expect.Additional},
		} {
			for j, p := range section.patterns {
				// an empty record would match anything
				if len(p) == 0 {
					return nil, errors.Errorf("scenario %q: %s record #%d is empty", sc.Name, section.name, j+1)
				}
			}
		}
	}
	return &s, nil
}

func LoadFile(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open suite")
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "suite %s", path)
	}
	s.Path = path
	return s, nil
}

// Resolve merges the suite variables with overrides, the latter taking precedence.
func (s *Suite) Resolve(overrides map[string]string) Vars {
	vars := make(Vars, len(s.Vars)+len(overrides))
	for k, v := range s.Vars {
		vars[k] = v
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

// CapturePath returns the capture file of sc resolved against the suite location.
func (s *Suite) CapturePath(sc *Scenario) string {
	if sc.CaptureFile == "" || filepath.IsAbs(sc.CaptureFile) || s.Path == "" {
		return sc.CaptureFile
	}
	return filepath.Join(filepath.Dir(s.Path), sc.CaptureFile)
}

// Vars holds the values substituted for ${NAME} placeholders.
type Vars map[string]string

var varRegex = regexp.MustCompile(`\$\$|\$\{([^}]*)\}`)

// Expand replaces every ${NAME} in s. "$$" stands for a literal "$" and any other "$" is kept
// as-is. Referencing an undefined variable is an error.
func (v Vars) Expand(s string) (string, error) {
	var missing []string
	out := varRegex.ReplaceAllStringFunc(s, func(m string) string {
		if m == "$$" {
			return "$"
		}
		name := m[2 : len(m)-1]
		val, ok := v[name]
		if !ok {
			missing = append(missing, name)
		}
		return val
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", errors.Errorf("undefined variable(s) %s in %q", strings.Join(missing, ", "), s)
	}
	return out, nil
}

// Question builds the query of the scenario.
func (sc *Scenario) Question(vars Vars) (capture.Question, error) {
	name, err := vars.Expand(sc.Query.Name)
	if err != nil {
		return capture.Question{}, err
	}
	qtype := sc.Query.Type
	if qtype == "" {
		qtype = "A"
	}
	return capture.NewQuestion(name, qtype, sc.Query.Class)
}

// NameServer returns the expanded server of the scenario, or def when it has none.
func (sc *Scenario) NameServer(vars Vars, def string) (string, error) {
	if sc.Server == "" {
		if def == "" {
			return "", errors.Errorf("scenario %q has no server and no default name server is set", sc.Name)
		}
		return def, nil
	}
	return vars.Expand(sc.Server)
}

// Expectation builds the verify.Expectation of the scenario.
func (sc *Scenario) Expectation(vars Vars) (*verify.Expectation, error) {
	exp := &verify.Expectation{}
	var err error
	if exp.Opcode, err = expandPtr(sc.Expect.Opcode, vars); err != nil {
		return nil, err
	}
	if exp.Status, err = expandPtr(sc.Expect.Status, vars); err != nil {
		return nil, err
	}
	if exp.Question, err = buildPatterns(sc.Expect.Question, vars); err != nil {
		return nil, errors.Wrap(err, "question")
	}
	if exp.Answer, err = buildPatterns(sc.Expect.Answer, vars); err != nil {
		return nil, errors.Wrap(err, "answer")
	}
	if exp.Additional, err = buildPatterns(sc.Expect.Additional, vars); err != nil {
		return nil, errors.Wrap(err, "additional")
	}
	return exp, nil
}

func expandPtr(s *string, vars Vars) (*string, error) {
	if s == nil {
		return nil, nil
	}
	out, err := vars.Expand(*s)
	if err != nil {
		return nil, err
	}
	out = strings.ToUpper(out)
	return &out, nil
}

// buildPatterns keeps the nil/empty distinction: a missing section stays unconstrained.
func buildPatterns(specs []PatternSpec, vars Vars) ([]verify.Pattern, error) {
	if specs == nil {
		return nil, nil
	}
	out := make([]verify.Pattern, 0, len(specs))
	for i, spec := range specs {
		p := make(verify.Pattern, 0, len(spec))
		for j, f := range spec {
			field, err := f.Build(vars)
			if err != nil {
				return nil, errors.Wrapf(err, "record #%d field #%d", i+1, j+1)
			}
			p = append(p, field)
		}
		out = append(out, p)
	}
	return out, nil
}
