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
	"fmt"
	"net/netip"
	"strings"
)

// Value is a normalized record field as seen by a Predicate.
type Value struct {
	raw  string
	addr netip.Addr
}

// TextValue wraps a field without any address canonicalization.
func TextValue(s string) Value {
	return Value{raw: s}
}

// AddrValue parses s as an IP address. If s is not an address the text is kept as-is.
func AddrValue(s string) Value {
	v := Value{raw: s}
	if a, err := netip.ParseAddr(s); err == nil {
		v.addr = a
	}
	return v
}

// String returns the canonical form of the value, RFC 5952 text for addresses.
func (v Value) String() string {
	if v.addr.IsValid() {
		return v.addr.String()
	}
	return v.raw
}

// Raw returns the field exactly as it was captured or written.
func (v Value) Raw() string {
	return v.raw
}

// Addr returns the parsed address if the field holds one.
func (v Value) Addr() (netip.Addr, bool) {
	return v.addr, v.addr.IsValid()
}

// Equal reports whether two values are the same after canonicalization.
func (v Value) Equal(o Value) bool {
	if v.addr.IsValid() && o.addr.IsValid() {
		return v.addr == o.addr
	}
	return v.String() == o.String()
}

// EqualString compares v against literal text, canonicalizing s as an address when v is one.
func (v Value) EqualString(s string) bool {
	if v.addr.IsValid() {
		return v.Equal(AddrValue(s))
	}
	return v.raw == s
}

// Predicate reports whether a captured field is acceptable.
type Predicate func(Value) bool

// Field is one position of a Pattern: either a literal or a predicate.
type Field struct {
	literal string
	pred    Predicate
	desc    string
}

// L returns a literal field.
func L(s string) Field {
	return Field{literal: s}
}

// Func returns a predicate field. desc is used when the field is printed.
func Func(desc string, p Predicate) Field {
	if p == nil {
		panic("verify: nil predicate")
	}
	if desc == "" {
		desc = "<predicate>"
	}
	return Field{pred: p, desc: desc}
}

// IsPredicate reports whether the field holds a predicate rather than a literal.
func (f Field) IsPredicate() bool {
	return f.pred != nil
}

// Literal returns the literal text and true, or "" and false for predicate fields.
func (f Field) Literal() (string, bool) {
	if f.pred != nil {
		return "", false
	}
	return f.literal, true
}

// accepts applies the field to a normalized captured value. want is the normalized literal
// and is ignored for predicate fields.
func (f Field) accepts(got Value, want Value) bool {
	if f.pred != nil {
		return f.pred(got)
	}
	return got.Equal(want)
}

// asPredicate turns a literal into an equality predicate so it can be composed.
func (f Field) asPredicate() Predicate {
	if f.pred != nil {
		return f.pred
	}
	lit := f.literal
	return func(v Value) bool { return v.EqualString(lit) }
}

func (f Field) String() string {
	if f.pred != nil {
		return f.desc
	}
	return f.literal
}

// Pattern is an expected record. Positions are laid out like a captured record with the TTL
// removed: (name, class, type) for questions and (name, class, type, rdata...) otherwise.
type Pattern []Field

// Lits builds a pattern made only of literals.
func Lits(fields ...string) Pattern {
	p := make(Pattern, len(fields))
	for i, f := range fields {
		p[i] = L(f)
	}
	return p
}

// literals returns the pattern as plain strings if it holds no predicates.
func (p Pattern) literals() ([]string, bool) {
	out := make([]string, len(p))
	for i, f := range p {
		lit, ok := f.Literal()
		if !ok {
			return nil, false
		}
		out[i] = lit
	}
	return out, true
}

// Record converts a literal-only pattern into a record. A pattern holding a predicate can
// never be a captured record and yields an InvariantViolation error.
func (p Pattern) Record() (Record, error) {
	lits, ok := p.literals()
	if !ok {
		return nil, &Error{Kind: InvariantViolation, Pattern: p}
	}
	return Record(lits), nil
}

// MustRecord is like Record but panics on a predicate field.
func MustRecord(p Pattern) Record {
	r, err := p.Record()
	if err != nil {
		panic(err)
	}
	return r
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, f := range p {
		parts[i] = f.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}
