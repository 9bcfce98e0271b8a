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

package iohandlers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, feed func(ctx context.Context, in chan<- string, wg *sync.WaitGroup) error) []string {
	t.Helper()
	in := make(chan string)
	var wg sync.WaitGroup
	wg.Add(1)
	errCh := make(chan error, 1)
	go func() { errCh <- feed(context.Background(), in, &wg) }()
	var out []string
	for s := range in {
		out = append(out, s)
	}
	wg.Wait()
	require.NoError(t, <-errCh)
	return out
}

func TestFileInputHandlerSkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suites.txt")
	require.NoError(t, os.WriteFile(path, []byte("# suites\na.yaml\n\n  b.yaml  \n#c.yaml\n"), 0644))

	got := collect(t, NewFileInputHandler(path).FeedChannel)
	require.Equal(t, []string{"a.yaml", "b.yaml"}, got)
}

func TestFileInputHandlerMissingFile(t *testing.T) {
	in := make(chan string)
	var wg sync.WaitGroup
	wg.Add(1)
	err := NewFileInputHandler(filepath.Join(t.TempDir(), "nope")).FeedChannel(context.Background(), in, &wg)
	require.Error(t, err)
	_, open := <-in
	require.False(t, open, "input channel must be closed")
}

func TestStringSliceInputHandler(t *testing.T) {
	got := collect(t, NewStringSliceInputHandler([]string{"a.yaml", "b.yaml"}).FeedChannel)
	require.Equal(t, []string{"a.yaml", "b.yaml"}, got)
}

func TestStringSliceInputHandlerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := make(chan string, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, NewStringSliceInputHandler([]string{"a.yaml"}).FeedChannel(ctx, in, &wg))
	_, open := <-in
	require.False(t, open)
}

func TestFileOutputHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	results := make(chan string, 2)
	results <- `{"scenario":"a"}`
	results <- `{"scenario":"b"}`
	close(results)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, NewFileOutputHandler(path).WriteResults(results, &wg))
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\"scenario\":\"a\"}\n{\"scenario\":\"b\"}\n", string(data))
}

func TestStatusLoop(t *testing.T) {
	h := &StatusHandler{interval: time.Hour}
	statuses := make(chan string, 4)
	statuses <- "PASS"
	statuses <- "FAIL"
	statuses <- "PASS"
	statuses <- "ERROR"
	close(statuses)

	var buf bytes.Buffer
	require.NoError(t, h.statusLoop(statuses, &buf))
	line := buf.String()
	require.True(t, strings.HasSuffix(line, "\n"))
	require.Contains(t, line, "Run Complete; 4 scenarios run")
	require.Contains(t, line, "50.0% pass rate")
	require.Contains(t, line, "PASS: 2, ERROR: 1, FAIL: 1")
}

func TestStatusOccurrenceString(t *testing.T) {
	require.Equal(t, "", getStatusOccurrenceString(map[string]int{}))
	require.Equal(t, "FAIL: 3, PASS: 1", getStatusOccurrenceString(map[string]int{"PASS": 1, "FAIL": 3}))
}
