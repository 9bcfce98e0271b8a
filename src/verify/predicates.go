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
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/match"
)

// Predicates in this file look at Value.String(), the canonical form of the field.

// Any accepts every value.
func Any() Field {
	return Func("*", func(Value) bool { return true })
}

func EqualFold(s string) Field {
	return Func(fmt.Sprintf("equal_fold(%s)", s), func(v Value) bool {
		return strings.EqualFold(v.String(), s)
	})
}

func HasPrefix(prefix string) Field {
	return Func(fmt.Sprintf("prefix(%s)", prefix), func(v Value) bool {
		return strings.HasPrefix(v.String(), prefix)
	})
}

func HasSuffix(suffix string) Field {
	return Func(fmt.Sprintf("suffix(%s)", suffix), func(v Value) bool {
		return strings.HasSuffix(v.String(), suffix)
	})
}

func Contains(substr string) Field {
	return Func(fmt.Sprintf("contains(%s)", substr), func(v Value) bool {
		return strings.Contains(v.String(), substr)
	})
}

// Regexp accepts values matching expr anywhere; anchor the expression to match the whole field.
func Regexp(expr string) (Field, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Field{}, errors.Wrapf(err, "invalid regex %q", expr)
	}
	return Func(fmt.Sprintf("regex(%s)", expr), func(v Value) bool {
		return re.MatchString(v.String())
	}), nil
}

func MustRegexp(expr string) Field {
	f, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// Glob accepts values matching a wildcard pattern where * matches any run of characters and
// ? matches one character.
func Glob(pattern string) Field {
	return Func(fmt.Sprintf("glob(%s)", pattern), func(v Value) bool {
		return match.Match(v.String(), pattern)
	})
}

// OneOf accepts any of the given literals. Addresses are compared canonically.
func OneOf(literals ...string) Field {
	return Func(fmt.Sprintf("one_of(%s)", strings.Join(literals, "|")), func(v Value) bool {
		for _, l := range literals {
			if v.EqualString(l) {
				return true
			}
		}
		return false
	})
}

// InPrefix accepts addresses inside the given network, e.g. "2402::/16".
func InPrefix(cidr string) (Field, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Field{}, errors.Wrapf(err, "invalid prefix %q", cidr)
	}
	return Func(fmt.Sprintf("cidr(%s)", prefix), func(v Value) bool {
		addr, ok := v.Addr()
		if !ok {
			var err error
			if addr, err = netip.ParseAddr(v.Raw()); err != nil {
				return false
			}
		}
		return prefix.Contains(addr)
	}), nil
}

func MustInPrefix(cidr string) Field {
	f, err := InPrefix(cidr)
	if err != nil {
		panic(err)
	}
	return f
}

// NetworkSet is a set of networks, such as an ipset.Set.
type NetworkSet interface {
	Contains(ip string) (bool, error)
}

// InNetworks accepts addresses contained in any network of the set.
func InNetworks(networks NetworkSet) Field {
	return Func("networks", func(v Value) bool {
		ok, err := networks.Contains(v.String())
		return err == nil && ok
	})
}

// Not inverts a field. A literal is negated as an equality check.
func Not(f Field) Field {
	p := f.asPredicate()
	return Func(fmt.Sprintf("not(%s)", f), func(v Value) bool { return !p(v) })
}

// And accepts values accepted by every field.
func And(fields ...Field) Field {
	preds, desc := compose(fields)
	return Func(fmt.Sprintf("and(%s)", desc), func(v Value) bool {
		for _, p := range preds {
			if !p(v) {
				return false
			}
		}
		return true
	})
}

// Or accepts values accepted by at least one field.
func Or(fields ...Field) Field {
	preds, desc := compose(fields)
	return Func(fmt.Sprintf("or(%s)", desc), func(v Value) bool {
		for _, p := range preds {
			if p(v) {
				return true
			}
		}
		return false
	})
}

func compose(fields []Field) ([]Predicate, string) {
	preds := make([]Predicate, len(fields))
	descs := make([]string, len(fields))
	for i, f := range fields {
		preds[i] = f.asPredicate()
		descs[i] = f.String()
	}
	return preds, strings.Join(descs, ", ")
}
