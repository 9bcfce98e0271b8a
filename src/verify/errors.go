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

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	UnexpectedOpcode      ErrorKind = "UNEXPECTED_OPCODE"
	UnexpectedStatus      ErrorKind = "UNEXPECTED_STATUS"
	QuestionCountMismatch ErrorKind = "QUESTION_COUNT_MISMATCH"
	AnswerCountMismatch   ErrorKind = "ANSWER_COUNT_MISMATCH"
	AdditionalCountTooLow ErrorKind = "ADDITIONAL_COUNT_TOO_LOW"
	QuestionNotFound      ErrorKind = "QUESTION_NOT_FOUND"
	AnswerNotFound        ErrorKind = "ANSWER_NOT_FOUND"
	AdditionalNotFound    ErrorKind = "ADDITIONAL_NOT_FOUND"
	InvariantViolation    ErrorKind = "INVARIANT_VIOLATION"
)

// Error describes the first constraint a Result failed to satisfy.
type Error struct {
	Kind    ErrorKind
	Section Section
	// Pattern is set for the *NotFound kinds and InvariantViolation.
	Pattern Pattern
	// Want and Got hold opcode/status strings or section sizes.
	Want   string
	Got    string
	Result *Result
}

// Summary is the one line description of the failure, without the result dump.
func (e *Error) Summary() string {
	switch e.Kind {
	case UnexpectedOpcode:
		return fmt.Sprintf("unexpected opcode: got %s, want %s", e.Got, e.Want)
	case UnexpectedStatus:
		return fmt.Sprintf("unexpected status: got %s, want %s", e.Got, e.Want)
	case QuestionCountMismatch, AnswerCountMismatch:
		return fmt.Sprintf("%s record count mismatch: got %s, want %s", e.Section, e.Got, e.Want)
	case AdditionalCountTooLow:
		return fmt.Sprintf("%s record count too low: got %s, want at least %s", e.Section, e.Got, e.Want)
	case QuestionNotFound, AnswerNotFound, AdditionalNotFound:
		return fmt.Sprintf("no %s record matches %s", e.Section, e.Pattern)
	case InvariantViolation:
		return fmt.Sprintf("captured record cannot hold a predicate: %s", e.Pattern)
	}
	return string(e.Kind)
}

func (e *Error) Error() string {
	if e.Result == nil {
		return e.Summary()
	}
	dump, err := e.Result.Dump()
	if err != nil {
		dump = fmt.Sprintf("%+v", *e.Result)
	}
	return e.Summary() + "\n" + dump
}

// IsKind reports whether err carries a verification failure of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Kind == kind
}

// KindOf returns the failure kind of err, or "" if err is not a verification failure.
func KindOf(err error) ErrorKind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
