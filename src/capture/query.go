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

package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"github.com/pkg/errors"

	"github.com/zmap/zverify/src/verify"
)

// Querier sends one question to a name server and captures the response.
type Querier interface {
	Query(ctx context.Context, nameServer string, q Question) (*verify.Result, error)
}

type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// NewQuestion builds a question from textual type and class, e.g. ("host.example", "AAAA", "IN").
// An empty class means IN.
func NewQuestion(name, qtype, class string) (Question, error) {
	if name == "" {
		return Question{}, errors.New("empty query name")
	}
	t, ok := dns.StringToType[strings.ToUpper(qtype)]
	if !ok {
		return Question{}, fmt.Errorf("unknown record type: %s", qtype)
	}
	c, err := ParseClass(class)
	if err != nil {
		return Question{}, err
	}
	return Question{Name: dns.Fqdn(name), Type: t, Class: c}, nil
}

// ParseClass accepts both the long and the short class names.
func ParseClass(class string) (uint16, error) {
	switch strings.ToUpper(class) {
	case "", "INET", "IN":
		return dns.ClassINET, nil
	case "CSNET", "CS":
		return dns.ClassCSNET, nil
	case "CHAOS", "CH":
		return dns.ClassCHAOS, nil
	case "HESIOD", "HS":
		return dns.ClassHESIOD, nil
	case "NONE":
		return dns.ClassNONE, nil
	case "ANY":
		return dns.ClassANY, nil
	}
	return 0, fmt.Errorf("unknown record class: %s. Valid values are INET (default), CSNET, CHAOS, HESIOD, NONE, ANY", class)
}

func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, dns.Class(q.Class), dns.Type(q.Type))
}
