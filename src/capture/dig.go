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
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zmap/zverify/src/verify"
)

const sectionAuthority verify.Section = "AUTHORITY"

var (
	digHeaderRegex    = regexp.MustCompile(`opcode: ([A-Za-z0-9]+), status: ([A-Za-z0-9]+)`)
	digQueryTimeRegex = regexp.MustCompile(`Query time: ([0-9]+) msec`)
)

// ParseDig parses the text output of a single dig query. Only the first response is read.
func ParseDig(r io.Reader) (*verify.Result, error) {
	var (
		res       verify.Result
		section   verify.Section
		sawHeader bool
		failure   string
	)
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		switch {
		case line == "":
			section = ""
		case strings.HasPrefix(line, ";; ->>HEADER<<-"):
			if sawHeader {
				return &res, nil
			}
			m := digHeaderRegex.FindStringSubmatch(line)
			if m == nil {
				return nil, errors.Errorf("malformed dig header: %s", line)
			}
			res.Opcode, res.Status = m[1], m[2]
			sawHeader = true
		case strings.HasPrefix(line, ";;") && strings.HasSuffix(line, "SECTION:"):
			section = digSection(line)
		case strings.HasPrefix(line, ";; SERVER:"):
			server := strings.TrimSpace(strings.TrimPrefix(line, ";; SERVER:"))
			if i := strings.Index(server, "("); i > 0 {
				server = server[:i]
			}
			res.Server = server
		case strings.HasPrefix(line, ";; Query time:"):
			if m := digQueryTimeRegex.FindStringSubmatch(line); m != nil {
				msec, _ := strconv.Atoi(m[1])
				res.Duration = float64(msec) / 1000
			}
		case strings.HasPrefix(line, ";; connection") || strings.HasPrefix(line, ";; communications error"):
			failure = strings.TrimPrefix(line, ";; ")
		case strings.HasPrefix(line, ";;"):
			// other dig status lines
		case section == verify.SectionQuestion && strings.HasPrefix(line, ";"):
			fields := strings.Fields(line[1:])
			if len(fields) != 3 {
				return nil, errors.Errorf("malformed dig question: %s", line)
			}
			res.Question = append(res.Question, verify.Record(fields))
		case strings.HasPrefix(line, ";"):
			// banner and EDNS pseudo-section
		case section == "":
			// text outside of any record section
		default:
			rec, err := parseDigRecord(line)
			if err != nil {
				return nil, err
			}
			switch section {
			case verify.SectionAnswer:
				res.Answer = append(res.Answer, rec)
			case sectionAuthority:
				res.Authority = append(res.Authority, rec)
			case verify.SectionAdditional:
				res.Additional = append(res.Additional, rec)
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to read dig output")
	}
	if !sawHeader {
		if failure != "" {
			return nil, errors.Errorf("dig did not get an answer: %s", failure)
		}
		return nil, errors.New("no response header in dig output")
	}
	return &res, nil
}

// ParseDigFile parses dig output saved at path.
func ParseDigFile(path string) (*verify.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open dig output")
	}
	defer f.Close()
	return ParseDig(f)
}

func digSection(line string) verify.Section {
	name := strings.TrimSuffix(strings.TrimPrefix(line, ";; "), " SECTION:")
	switch verify.Section(name) {
	case verify.SectionQuestion, verify.SectionAnswer, sectionAuthority, verify.SectionAdditional:
		return verify.Section(name)
	}
	return ""
}

// parseDigRecord splits "name ttl class type rdata..." into fields. TXT rdata stays in a
// single field since its strings may contain spaces.
func parseDigRecord(line string) (verify.Record, error) {
	rec := make(verify.Record, 0, 5)
	rest := line
	for i := 0; i < 4; i++ {
		rest = strings.TrimLeft(rest, " \t")
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}
		if end == 0 {
			return nil, errors.Errorf("malformed dig record: %s", line)
		}
		rec = append(rec, rest[:end])
		rest = rest[end:]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return rec, nil
	}
	if strings.EqualFold(rec[3], "TXT") {
		return append(rec, rest), nil
	}
	return append(rec, strings.Fields(rest)...), nil
}
