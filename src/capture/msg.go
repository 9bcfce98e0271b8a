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
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/zmap/zverify/src/verify"
)

// FromMsg converts a DNS message into a verify.Result laid out the way dig prints it.
func FromMsg(m *dns.Msg) *verify.Result {
	res := &verify.Result{
		Opcode: opcodeString(m.Opcode),
		Status: rcodeString(m.Rcode),
	}
	for _, q := range m.Question {
		res.Question = append(res.Question, verify.Record{q.Name, dns.Class(q.Qclass).String(), dns.Type(q.Qtype).String()})
	}
	res.Answer = rrRecords(m.Answer)
	res.Authority = rrRecords(m.Ns)
	res.Additional = rrRecords(m.Extra)
	return res
}

func opcodeString(op int) string {
	if s, ok := dns.OpcodeToString[op]; ok {
		return s
	}
	return strconv.Itoa(op)
}

func rcodeString(rcode int) string {
	if s, ok := dns.RcodeToString[rcode]; ok {
		return s
	}
	return strconv.Itoa(rcode)
}

func rrRecords(rrs []dns.RR) []verify.Record {
	var out []verify.Record
	for _, rr := range rrs {
		// dig shows the OPT record in its own pseudo-section, never among the additionals
		if rr.Header().Rrtype == dns.TypeOPT {
			continue
		}
		out = append(out, rrRecord(rr))
	}
	return out
}

// rrRecord returns (name, ttl, class, type, rdata...). TXT strings are kept together in one
// quoted field, other rdata gets one field per element.
func rrRecord(rr dns.RR) verify.Record {
	h := rr.Header()
	r := verify.Record{
		h.Name,
		strconv.FormatUint(uint64(h.Ttl), 10),
		dns.Class(h.Class).String(),
		dns.Type(h.Rrtype).String(),
	}
	if txt, ok := rr.(*dns.TXT); ok {
		quoted := make([]string, len(txt.Txt))
		for i, s := range txt.Txt {
			quoted[i] = `"` + s + `"`
		}
		return append(r, strings.Join(quoted, " "))
	}
	rdata := strings.TrimPrefix(rr.String(), h.String())
	return append(r, strings.Fields(rdata)...)
}
