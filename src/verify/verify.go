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
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Verifier checks captured results against expectations. The zero value logs to the
// standard logrus logger.
type Verifier struct {
	Logger log.FieldLogger
	// DumpGroups restricts the sheriff output groups used when logging a matching result.
	DumpGroups []string
}

var defaultVerifier = &Verifier{}

// Verify checks res against exp with the default Verifier.
func Verify(res *Result, exp *Expectation) error {
	return defaultVerifier.Verify(res, exp)
}

func (v *Verifier) logger() log.FieldLogger {
	if v.Logger == nil {
		return log.StandardLogger()
	}
	return v.Logger
}

// Verify returns nil if res satisfies exp, or an *Error for the first violated constraint.
// Constraints are checked in order: opcode, status, question, answer, additional.
func (v *Verifier) Verify(res *Result, exp *Expectation) error {
	if res == nil {
		return errors.New("nil result")
	}
	if exp == nil {
		exp = &Expectation{}
	}
	if res.Opcode != exp.opcode() {
		return &Error{Kind: UnexpectedOpcode, Want: exp.opcode(), Got: res.Opcode, Result: res}
	}
	if res.Status != exp.status() {
		return &Error{Kind: UnexpectedStatus, Want: exp.status(), Got: res.Status, Result: res}
	}

	if exp.Question != nil {
		if len(res.Question) != len(exp.Question) {
			return countError(QuestionCountMismatch, SectionQuestion, len(exp.Question), len(res.Question), res)
		}
		for _, p := range exp.Question {
			if !v.matchAny(res.Question, p, false) {
				return &Error{Kind: QuestionNotFound, Section: SectionQuestion, Pattern: p, Result: res}
			}
		}
	}

	if exp.Answer != nil {
		if len(res.Answer) != len(exp.Answer) {
			return countError(AnswerCountMismatch, SectionAnswer, len(exp.Answer), len(res.Answer), res)
		}
		for _, p := range exp.Answer {
			if !v.matchAny(res.Answer, p, true) {
				return &Error{Kind: AnswerNotFound, Section: SectionAnswer, Pattern: p, Result: res}
			}
		}
	}

	if exp.Additional != nil {
		// responders may attach extra supplementary records
		if len(res.Additional) < len(exp.Additional) {
			return countError(AdditionalCountTooLow, SectionAdditional, len(exp.Additional), len(res.Additional), res)
		}
		for _, p := range exp.Additional {
			if !v.matchAny(res.Additional, p, true) {
				return &Error{Kind: AdditionalNotFound, Section: SectionAdditional, Pattern: p, Result: res}
			}
		}
	}

	if dump, err := res.Dump(v.DumpGroups...); err != nil {
		v.logger().Warnf("unable to dump matching result: %v", err)
	} else {
		v.logger().Infof("dig result matches:\n%s", dump)
	}
	return nil
}

func countError(kind ErrorKind, s Section, want, got int, res *Result) *Error {
	return &Error{Kind: kind, Section: s, Want: strconv.Itoa(want), Got: strconv.Itoa(got), Result: res}
}

// matchAny reports whether any record matches p. Resource records have their TTL removed first.
func (v *Verifier) matchAny(records []Record, p Pattern, stripTTL bool) bool {
	debug := v.debugEnabled()
	for _, r := range records {
		if stripTTL {
			r = StripTTL(r)
		}
		if Match(r, p) {
			return true
		}
		if debug {
			v.logger().WithField("record", r.String()).WithField("pattern", p.String()).
				Debugf("not match: %v", Explain(r, p))
		}
	}
	return false
}

// debugEnabled reports whether the logger emits debug entries. Loggers of unknown types are
// assumed to.
func (v *Verifier) debugEnabled() bool {
	switch l := v.logger().(type) {
	case *log.Logger:
		return l.IsLevelEnabled(log.DebugLevel)
	case *log.Entry:
		return l.Logger.IsLevelEnabled(log.DebugLevel)
	}
	return true
}
