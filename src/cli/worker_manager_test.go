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

package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/zmap/zverify/src/capture"
	"github.com/zmap/zverify/src/verify"
)

type memOutput struct {
	lines []string
}

func (m *memOutput) WriteResults(results <-chan string, wg *sync.WaitGroup) error {
	defer wg.Done()
	for r := range results {
		m.lines = append(m.lines, r)
	}
	return nil
}

// byScenario decodes the output lines keyed by scenario name.
func (m *memOutput) byScenario(t *testing.T) map[string]map[string]interface{} {
	t.Helper()
	out := make(map[string]map[string]interface{}, len(m.lines))
	for _, line := range m.lines {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out[rec["scenario"].(string)] = rec
	}
	return out
}

type stubQuerier struct {
	mu      sync.Mutex
	servers []string
	answer  string
}

func (s *stubQuerier) Query(_ context.Context, nameServer string, q capture.Question) (*verify.Result, error) {
	s.mu.Lock()
	s.servers = append(s.servers, nameServer)
	s.mu.Unlock()
	return &verify.Result{
		Opcode:   verify.OpcodeQuery,
		Status:   verify.StatusNoError,
		Question: []verify.Record{{"host.example.", "IN", "AAAA"}},
		Answer:   []verify.Record{{"host.example.", "60", "IN", "AAAA", s.answer}},
	}, nil
}

const liveSuite = `
vars:
  DOMAIN: example.
scenarios:
  - name: default server
    query: {name: "host.${DOMAIN}", type: AAAA}
    expect:
      answer:
        - ["host.${DOMAIN}", IN, AAAA, {cidr: "2402::/16"}]
  - name: blacklisted server
    server: 10.0.0.53
    query: {name: "host.${DOMAIN}", type: AAAA}
    expect: {}
`

func writeLiveSuite(t *testing.T) (suite, blacklist string) {
	dir := t.TempDir()
	suite = filepath.Join(dir, "live.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(liveSuite), 0644))
	blacklist = filepath.Join(dir, "blacklist.conf")
	require.NoError(t, os.WriteFile(blacklist, []byte("10.0.0.0/8\n"), 0644))
	return suite, blacklist
}

func TestRunCapturedSuite(t *testing.T) {
	out := &memOutput{}
	gc := baseConf()
	gc.OutputHandler = out
	gc.MetadataFilePath = filepath.Join(t.TempDir(), "metadata.json")

	meta, err := Run(context.Background(), gc, []string{filepath.Join("..", "scenario", "testdata", "suite.yaml")})
	require.NoError(t, err)
	require.False(t, meta.Passed())
	require.Equal(t, 1, meta.Suites)
	require.Equal(t, 3, meta.Scenarios)
	require.Equal(t, map[string]int{statusPass: 2, statusFail: 1}, meta.Status)

	recs := out.byScenario(t)
	require.Len(t, recs, 3)
	require.Equal(t, statusPass, recs["wifi host AAAA"]["status"])
	require.Equal(t, "wifi-host.default.service.arpa. IN AAAA", recs["wifi host AAAA"]["query"])
	require.Equal(t, statusPass, recs["wifi service SRV"]["status"])

	failed := recs["wifi host has no A record"]
	require.Equal(t, statusFail, failed["status"])
	failure := failed["failure"].(map[string]interface{})
	require.Equal(t, string(verify.AnswerNotFound), failure["kind"])
	require.Equal(t, string(verify.SectionAnswer), failure["section"])
	require.Contains(t, failure["pattern"], "not(one_of(AAAA))")
	_, hasResult := failed["result"]
	require.False(t, hasResult, "result is only part of the long output")

	data, err := os.ReadFile(gc.MetadataFilePath)
	require.NoError(t, err)
	var written Metadata
	require.NoError(t, json.Unmarshal(data, &written))
	require.Equal(t, 3, written.Scenarios)
	require.Equal(t, zverifyCLIVersion, written.ZVerifyVersion)
}

func TestRunLongOutputIncludesResult(t *testing.T) {
	out := &memOutput{}
	gc := baseConf()
	gc.ResultVerbosity = "long"
	gc.OutputHandler = out

	_, err := Run(context.Background(), gc, []string{filepath.Join("..", "scenario", "testdata", "suite.yaml")})
	require.NoError(t, err)
	rec := out.byScenario(t)["wifi host AAAA"]
	result, ok := rec["result"].(map[string]interface{})
	require.True(t, ok, "expected result in long output: %v", rec)
	require.Equal(t, "NOERROR", result["status"])
	require.Len(t, result["ANSWER"], 1)
}

func TestRunLiveQueries(t *testing.T) {
	suite, blacklist := writeLiveSuite(t)
	querier := &stubQuerier{answer: "2402::1"}
	out := &memOutput{}
	gc := baseConf()
	gc.Querier = querier
	gc.OutputHandler = out
	gc.NameServerString = "192.0.2.53"
	gc.BlacklistFilePath = blacklist

	meta, err := Run(context.Background(), gc, []string{suite})
	require.NoError(t, err)
	require.Equal(t, map[string]int{statusPass: 1, statusError: 1}, meta.Status)
	require.Equal(t, []string{"192.0.2.53:53"}, querier.servers, "blacklisted servers must never be queried")

	recs := out.byScenario(t)
	require.Equal(t, "192.0.2.53:53", recs["default server"]["name_server"])
	require.Equal(t, statusError, recs["blacklisted server"]["status"])
	require.Contains(t, recs["blacklisted server"]["error"], "blacklisted")
}

func TestRunVarsOverride(t *testing.T) {
	suite, _ := writeLiveSuite(t)
	out := &memOutput{}
	gc := baseConf()
	gc.Querier = &stubQuerier{answer: "2402::1"}
	gc.OutputHandler = out
	gc.NameServerString = "192.0.2.53"
	gc.VarsString = "DOMAIN=other."

	meta, err := Run(context.Background(), gc, []string{suite})
	require.NoError(t, err)
	require.Equal(t, 2, meta.Scenarios)
	rec := out.byScenario(t)["default server"]
	require.Equal(t, statusFail, rec["status"])
	require.Equal(t, "host.other. IN AAAA", rec["query"])
}

func TestRunWrongAnswerFails(t *testing.T) {
	suite, _ := writeLiveSuite(t)
	out := &memOutput{}
	gc := baseConf()
	gc.Querier = &stubQuerier{answer: "fe80::1"}
	gc.OutputHandler = out
	gc.NameServerString = "192.0.2.53"

	meta, err := Run(context.Background(), gc, []string{suite})
	require.NoError(t, err)
	require.False(t, meta.Passed())
	rec := out.byScenario(t)["default server"]
	require.Equal(t, statusFail, rec["status"])
	require.Contains(t, rec["error"], "no ANSWER record matches")
	// the other scenario queries a server of its own
	require.Equal(t, statusPass, out.byScenario(t)["blacklisted server"]["status"])
}

func TestRunMissingNameServer(t *testing.T) {
	suite, _ := writeLiveSuite(t)
	out := &memOutput{}
	gc := baseConf()
	gc.Querier = &stubQuerier{answer: "2402::1"}
	gc.OutputHandler = out

	meta, err := Run(context.Background(), gc, []string{suite})
	require.NoError(t, err)
	require.Equal(t, 1, meta.Status[statusError])
	require.Contains(t, out.byScenario(t)["default server"]["error"], "no default name server")
}

func TestRunInvalidSuite(t *testing.T) {
	gc := baseConf()
	gc.OutputHandler = &memOutput{}
	_, err := Run(context.Background(), gc, []string{filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scenarios:\n  - name: a\n    capture_file: a.txt\n    bogus: 1\n"), 0644))
	_, err = Run(context.Background(), gc, []string{bad})
	require.Error(t, err)
}

func TestMetadataPassed(t *testing.T) {
	require.True(t, (&Metadata{Status: map[string]int{}}).Passed())
	require.True(t, (&Metadata{Scenarios: 2, Status: map[string]int{statusPass: 2}}).Passed())
	require.False(t, (&Metadata{Scenarios: 2, Status: map[string]int{statusPass: 1, statusError: 1}}).Passed())
}

func TestRunLogsCapturedResultOnFailure(t *testing.T) {
	hook := test.NewGlobal()
	defer log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	out := &memOutput{}
	gc := baseConf()
	gc.OutputHandler = out
	_, err := Run(context.Background(), gc, []string{filepath.Join("..", "scenario", "testdata", "suite.yaml")})
	require.NoError(t, err)

	var failures []*log.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Data["scenario"] == "wifi host has no A record" {
			failures = append(failures, e)
		}
	}
	require.Len(t, failures, 1)
	require.Contains(t, failures[0].Message, "no ANSWER record matches")
	require.Contains(t, failures[0].Message, "2402::0:0:0:abcd", "the captured answer is part of the message")
	_, inOutput := out.byScenario(t)["wifi host has no A record"]["result"]
	require.False(t, inOutput)
}