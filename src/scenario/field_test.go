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

package scenario

import (
	"testing"

	"gopkg.in/yaml.v3"
	"gotest.tools/v3/assert"

	"github.com/zmap/zverify/src/verify"
)

func buildField(t *testing.T, doc string, vars Vars) verify.Field {
	t.Helper()
	var spec FieldSpec
	assert.NilError(t, yaml.Unmarshal([]byte(doc), &spec))
	f, err := spec.Build(vars)
	assert.NilError(t, err)
	return f
}

func TestFieldSpecMatchers(t *testing.T) {
	vars := Vars{"D": "example."}
	tests := []struct {
		doc    string
		record verify.Record
		match  bool
	}{
		{`"host.${D}"`, verify.Record{"host.example."}, true},
		{`3600`, verify.Record{"3600"}, true},
		{`{any: true}`, verify.Record{"whatever"}, true},
		{`{prefix: host}`, verify.Record{"host.example."}, true},
		{`{suffix: "${D}"}`, verify.Record{"host.example."}, true},
		{`{suffix: "${D}"}`, verify.Record{"host.example.org."}, false},
		{`{contains: ".exa"}`, verify.Record{"host.example."}, true},
		{`{regex: "^h.st\\."}`, verify.Record{"host.example."}, true},
		{`{glob: "*.example."}`, verify.Record{"host.example."}, true},
		{`{glob: "*.example."}`, verify.Record{"host.example.org."}, false},
		{`{equal_fold: HOST.EXAMPLE.}`, verify.Record{"host.example."}, true},
		{`{one_of: [A, AAAA]}`, verify.Record{"AAAA"}, true},
		{`{one_of: [A, AAAA]}`, verify.Record{"SRV"}, false},
		{`{not: {one_of: [A, AAAA]}}`, verify.Record{"SRV"}, true},
		{`{not: AAAA}`, verify.Record{"AAAA"}, false},
		{`{cidr: "10.0.0.0/8"}`, verify.Record{"10.1.2.3"}, true},
		{`{networks: ["10.0.0.0/8", "192.168.0.0/16"]}`, verify.Record{"192.168.7.1"}, true},
		{`{networks: ["10.0.0.0/8"]}`, verify.Record{"192.168.7.1"}, false},
	}
	for _, tc := range tests {
		f := buildField(t, tc.doc, vars)
		got := verify.Match(tc.record, verify.Pattern{f})
		assert.Equal(t, tc.match, got, "%s against %v", tc.doc, tc.record)
	}
}

func TestFieldSpecLiteralStaysLiteral(t *testing.T) {
	f := buildField(t, `AAAA`, nil)
	assert.Assert(t, !f.IsPredicate())
	lit, ok := f.Literal()
	assert.Assert(t, ok)
	assert.Equal(t, "AAAA", lit)

	f = buildField(t, `{prefix: A}`, nil)
	assert.Assert(t, f.IsPredicate())
}

func TestFieldSpecAddressPredicateSeesCanonicalForm(t *testing.T) {
	p := verify.Pattern{
		verify.L("host.example."), verify.L("IN"), verify.L("AAAA"),
		buildField(t, `{one_of: ["2402::abcd"]}`, nil),
	}
	assert.Assert(t, verify.Match(verify.Record{"host.example.", "IN", "AAAA", "2402:0:0::abcd"}, p))
}

func TestLiteralSpec(t *testing.T) {
	spec := LiteralSpec("${X}")
	f, err := spec.Build(Vars{"X": "y"})
	assert.NilError(t, err)
	lit, _ := f.Literal()
	assert.Equal(t, "y", lit)

	_, err = spec.Build(Vars{})
	assert.ErrorContains(t, err, "undefined variable")
}
