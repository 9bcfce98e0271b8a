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
	"testing"

	"gotest.tools/v3/assert"
)

type staticNetworks map[string]bool

func (s staticNetworks) Contains(ip string) (bool, error) {
	return s[ip], nil
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		value    Value
		expected bool
	}{
		{"any", Any(), TextValue(""), true},
		{"equal fold", EqualFold("HOST.example."), TextValue("host.EXAMPLE."), true},
		{"prefix", HasPrefix("2402"), AddrValue("2402::abcd"), true},
		{"prefix on canonical form", HasPrefix("2402::ab"), AddrValue("2402:0:0:0:0:0:0:abcd"), true},
		{"prefix miss", HasPrefix("2402"), AddrValue("fe80::1234"), false},
		{"suffix", HasSuffix(".service.arpa."), TextValue("wifi-host.default.service.arpa."), true},
		{"contains", Contains("k1=v1"), TextValue(`"k1=v1" "k2=v2"`), true},
		{"regex", MustRegexp(`^wifi-service[0-9]+\.`), TextValue("wifi-service12._host._tcp."), true},
		{"regex miss", MustRegexp(`^wifi-service[0-9]+\.`), TextValue("printer._ipp._tcp."), false},
		{"glob", Glob("*._host._tcp.default.service.arpa."), TextValue("wifi-service1._host._tcp.default.service.arpa."), true},
		{"glob single char", Glob("wifi-service?.*"), TextValue("wifi-service12.x"), false},
		{"one of address", OneOf("fe80::1234", "2402::abcd"), AddrValue("2402:0::abcd"), true},
		{"one of miss", OneOf("fe80::1234"), AddrValue("2402::abcd"), false},
		{"cidr", MustInPrefix("2402::/16"), AddrValue("2402::abcd"), true},
		{"cidr text value", MustInPrefix("fe80::/10"), TextValue("fe80::1234"), true},
		{"cidr miss", MustInPrefix("2402::/16"), AddrValue("fe80::1234"), false},
		{"cidr not an address", MustInPrefix("2402::/16"), TextValue("host.example."), false},
		{"networks", InNetworks(staticNetworks{"10.0.0.1": true}), AddrValue("10.0.0.1"), true},
		{"networks miss", InNetworks(staticNetworks{"10.0.0.1": true}), AddrValue("10.0.0.2"), false},
		{"not literal", Not(L("fe80::1234")), AddrValue("fe80:0::1234"), false},
		{"not predicate", Not(HasPrefix("fe80")), AddrValue("2402::1"), true},
		{"and", And(HasPrefix("2402"), MustInPrefix("2402::/16")), AddrValue("2402::1"), true},
		{"and miss", And(HasPrefix("2402"), L("2402::2")), AddrValue("2402::1"), false},
		{"or", Or(L("fe80::1"), HasPrefix("2402")), AddrValue("2402::1"), true},
		{"or miss", Or(L("fe80::1"), HasPrefix("2403")), AddrValue("2402::1"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Assert(t, test.field.IsPredicate())
			assert.Equal(t, test.expected, test.field.accepts(test.value, Value{}))
		})
	}
}

func TestInvalidPredicates(t *testing.T) {
	_, err := Regexp("([")
	assert.ErrorContains(t, err, "invalid regex")
	_, err = InPrefix("2402::/200")
	assert.ErrorContains(t, err, "invalid prefix")
}

func TestFieldString(t *testing.T) {
	p := Pattern{L("host.example."), L("IN"), L("AAAA"), Not(HasPrefix("fe80"))}
	assert.Equal(t, "(host.example., IN, AAAA, not(prefix(fe80)))", p.String())
}
