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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/liip/sheriff"
)

const (
	OpcodeQuery   = "QUERY"
	StatusNoError = "NOERROR"
)

// Positions within a captured answer/additional record.
const (
	NameIndex = 0
	TTLIndex  = 1
)

// Positions within a record once the TTL is removed, and within a question.
const (
	ClassIndex = 1
	TypeIndex  = 2
	RDataIndex = 3
)

type Section string

const (
	SectionQuestion   Section = "QUESTION"
	SectionAnswer     Section = "ANSWER"
	SectionAdditional Section = "ADDITIONAL"
)

// Record is a captured record in dig field order.
// Questions are (name, class, type), everything else (name, ttl, class, type, rdata...).
type Record []string

// StripTTL returns a copy of an answer/additional record without its TTL.
func StripTTL(r Record) Record {
	if len(r) <= TTLIndex {
		return append(Record(nil), r...)
	}
	out := make(Record, 0, len(r)-1)
	out = append(out, r[:TTLIndex]...)
	return append(out, r[TTLIndex+1:]...)
}

func (r Record) String() string {
	return fmt.Sprintf("(%s)", strings.Join(r, ", "))
}

// Result is the decoded outcome of one query. Nothing mutates it once it is captured.
type Result struct {
	Opcode     string   `json:"opcode" groups:"short,normal,long,trace"`
	Status     string   `json:"status" groups:"short,normal,long,trace"`
	Question   []Record `json:"QUESTION,omitempty" groups:"normal,long,trace"`
	Answer     []Record `json:"ANSWER,omitempty" groups:"short,normal,long,trace"`
	Authority  []Record `json:"AUTHORITY,omitempty" groups:"long,trace"`
	Additional []Record `json:"ADDITIONAL,omitempty" groups:"normal,long,trace"`
	Server     string   `json:"server,omitempty" groups:"long,trace"`
	Timestamp  string   `json:"timestamp,omitempty" groups:"trace"`
	Duration   float64  `json:"duration,omitempty" groups:"trace"` // in seconds
}

// Section returns the records of the named section.
func (r *Result) Section(s Section) []Record {
	switch s {
	case SectionQuestion:
		return r.Question
	case SectionAnswer:
		return r.Answer
	case SectionAdditional:
		return r.Additional
	}
	return nil
}

var dumpVersion = version.Must(version.NewVersion("0.0.0"))

// Dump renders the result as indented JSON restricted to the given sheriff output groups.
// Without groups everything is included.
func (r *Result) Dump(groups ...string) (string, error) {
	if r == nil {
		return "null", nil
	}
	if len(groups) == 0 {
		groups = []string{"trace"}
	}
	data, err := sheriff.Marshal(&sheriff.Options{Groups: groups, ApiVersion: dumpVersion}, r)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(data, "", " ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Expectation describes the acceptable shape of a Result.
// A nil section is not checked. Opcode and Status default to QUERY and NOERROR.
type Expectation struct {
	Opcode     *string
	Status     *string
	Question   []Pattern
	Answer     []Pattern
	Additional []Pattern
}

func (e *Expectation) opcode() string {
	if e.Opcode == nil {
		return OpcodeQuery
	}
	return *e.Opcode
}

func (e *Expectation) status() string {
	if e.Status == nil {
		return StatusNoError
	}
	return *e.Status
}

// StringPtr is a helper for filling Expectation.Opcode and Expectation.Status.
func StringPtr(s string) *string {
	return &s
}
