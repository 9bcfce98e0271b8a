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
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zmap/zverify/src/internal/ipset"
	"github.com/zmap/zverify/src/verify"
)

const (
	matcherAny       = "any"
	matcherPrefix    = "prefix"
	matcherSuffix    = "suffix"
	matcherContains  = "contains"
	matcherRegex     = "regex"
	matcherGlob      = "glob"
	matcherCIDR      = "cidr"
	matcherNetworks  = "networks"
	matcherOneOf     = "one_of"
	matcherNot       = "not"
	matcherEqualFold = "equal_fold"
)

var matchers = []string{
	matcherAny, matcherPrefix, matcherSuffix, matcherContains, matcherRegex, matcherGlob,
	matcherCIDR, matcherNetworks, matcherOneOf, matcherNot, matcherEqualFold,
}

// FieldSpec is one expected field as written in a suite: either a scalar literal or a mapping
// with a single matcher key, e.g. {prefix: "2402"} or {not: {one_of: [A, AAAA]}}.
type FieldSpec struct {
	literal *string
	matcher string
	arg     string
	args    []string
	inner   *FieldSpec
}

// LiteralSpec returns a FieldSpec expecting exactly s.
func LiteralSpec(s string) FieldSpec {
	return FieldSpec{literal: &s}
}

func (f *FieldSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return errors.Errorf("line %d: empty field", node.Line)
		}
		v := node.Value
		f.literal = &v
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return errors.Errorf("line %d: a matcher must have exactly one key, one of %s", node.Line, strings.Join(matchers, ", "))
		}
		return f.decodeMatcher(node.Content[0].Value, node.Content[1])
	}
	return errors.Errorf("line %d: a field must be a scalar or a matcher", node.Line)
}

func (f *FieldSpec) decodeMatcher(key string, val *yaml.Node) error {
	f.matcher = key
	switch key {
	case matcherAny:
		var b bool
		if err := val.Decode(&b); err != nil || !b {
			return errors.Errorf("line %d: %s takes the value true", val.Line, key)
		}
	case matcherOneOf, matcherNetworks:
		if err := val.Decode(&f.args); err != nil {
			return errors.Wrapf(err, "line %d: %s takes a list", val.Line, key)
		}
		if len(f.args) == 0 {
			return errors.Errorf("line %d: %s needs at least one entry", val.Line, key)
		}
	case matcherNot:
		f.inner = &FieldSpec{}
		return f.inner.UnmarshalYAML(val)
	case matcherPrefix, matcherSuffix, matcherContains, matcherRegex, matcherGlob, matcherCIDR, matcherEqualFold:
		if val.Kind != yaml.ScalarNode {
			return errors.Errorf("line %d: %s takes a string", val.Line, key)
		}
		f.arg = val.Value
	default:
		return errors.Errorf("line %d: unknown matcher %q, expected one of %s", val.Line, key, strings.Join(matchers, ", "))
	}
	return nil
}

// UnmarshalYAML decodes every element of the sequence itself so that null fields are reported
// instead of being dropped, which would shift the following fields into the wrong positions.
func (p *PatternSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return errors.Errorf("line %d: a record must be a list of fields", node.Line)
	}
	out := make(PatternSpec, len(node.Content))
	for i, elem := range node.Content {
		if err := out[i].UnmarshalYAML(elem); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

// Build expands variables and returns the verify.Field described by f.
func (f *FieldSpec) Build(vars Vars) (verify.Field, error) {
	if f.literal != nil {
		s, err := vars.Expand(*f.literal)
		if err != nil {
			return verify.Field{}, err
		}
		return verify.L(s), nil
	}
	if f.matcher == matcherNot {
		inner, err := f.inner.Build(vars)
		if err != nil {
			return verify.Field{}, err
		}
		return verify.Not(inner), nil
	}
	arg, err := vars.Expand(f.arg)
	if err != nil {
		return verify.Field{}, err
	}
	args := make([]string, len(f.args))
	for i, a := range f.args {
		if args[i], err = vars.Expand(a); err != nil {
			return verify.Field{}, err
		}
	}
	switch f.matcher {
	case matcherAny:
		return verify.Any(), nil
	case matcherPrefix:
		return verify.HasPrefix(arg), nil
	case matcherSuffix:
		return verify.HasSuffix(arg), nil
	case matcherContains:
		return verify.Contains(arg), nil
	case matcherEqualFold:
		return verify.EqualFold(arg), nil
	case matcherGlob:
		return verify.Glob(arg), nil
	case matcherRegex:
		return verify.Regexp(arg)
	case matcherCIDR:
		return verify.InPrefix(arg)
	case matcherOneOf:
		return verify.OneOf(args...), nil
	case matcherNetworks:
		set, err := ipset.FromCIDRs(args...)
		if err != nil {
			return verify.Field{}, err
		}
		return verify.InNetworks(set), nil
	}
	return verify.Field{}, errors.New("empty field")
}
