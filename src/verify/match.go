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

package verify

import (
	"slices"
	"strings"
)

// isAddressType reports whether rdata of the given record type is a single IP address.
func isAddressType(rrType string) bool {
	switch strings.ToUpper(rrType) {
	case "AAAA", "A":
		return true
	}
	return false
}

// recordHoldsAddress reports whether the rdata of a TTL-stripped record is an IP address.
func recordHoldsAddress(r Record) bool {
	return len(r) > RDataIndex && isAddressType(r[TypeIndex])
}

// patternHoldsAddress reports whether the pattern's own type field is a literal address type.
func patternHoldsAddress(p Pattern) bool {
	if len(p) <= RDataIndex {
		return false
	}
	t, ok := p[TypeIndex].Literal()
	return ok && isAddressType(t)
}

// normalizeRecord canonicalizes the address of A/AAAA records so that textual formatting
// differences never cause a mismatch. The record must already be TTL-stripped.
func normalizeRecord(r Record) []Value {
	vals := make([]Value, len(r))
	addr := recordHoldsAddress(r)
	for i, f := range r {
		if addr && i == RDataIndex {
			vals[i] = AddrValue(f)
		} else {
			vals[i] = TextValue(f)
		}
	}
	return vals
}

// normalizePattern does the same for the literal fields of a pattern. The rdata literal is
// treated as an address when either the pattern or the record it is compared with has an
// address type.
func normalizePattern(p Pattern, record Record) []Value {
	vals := make([]Value, len(p))
	addr := patternHoldsAddress(p) || recordHoldsAddress(record)
	for i, f := range p {
		lit, ok := f.Literal()
		if !ok {
			continue
		}
		if addr && i == RDataIndex {
			vals[i] = AddrValue(lit)
		} else {
			vals[i] = TextValue(lit)
		}
	}
	return vals
}

// Match reports whether a captured record satisfies a pattern. Fields are compared pairwise
// over the positions both have; trailing fields of the longer side are not compared.
func Match(record Record, pattern Pattern) bool {
	if len(record) == len(pattern) {
		if lits, ok := pattern.literals(); ok && slices.Equal([]string(record), lits) {
			return true
		}
	}
	got := normalizeRecord(record)
	want := normalizePattern(pattern, record)
	for i := 0; i < min(len(got), len(want)); i++ {
		if !pattern[i].accepts(got[i], want[i]) {
			return false
		}
	}
	return true
}

// FieldResult is the outcome of comparing one position of a record and a pattern.
type FieldResult struct {
	Index int
	Got   string
	Want  string
	Match bool
}

// Explain compares record and pattern position by position, for diagnostics.
func Explain(record Record, pattern Pattern) []FieldResult {
	got := normalizeRecord(record)
	want := normalizePattern(pattern, record)
	n := min(len(got), len(want))
	out := make([]FieldResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, FieldResult{
			Index: i,
			Got:   got[i].String(),
			Want:  pattern[i].String(),
			Match: pattern[i].accepts(got[i], want[i]),
		})
	}
	return out
}
