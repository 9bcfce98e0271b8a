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
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zmap/zverify/src/internal/util"
)

// statusPass must match the status the runner gives passing scenarios.
const statusPass = "PASS"

type StatusHandler struct {
	filePath string
	interval time.Duration
}

type runStats struct {
	startTime       time.Time
	scenariosRun    int
	scenariosPassed int
	statusOccurance map[string]int
}

func NewStatusHandler(filePath string) *StatusHandler {
	return &StatusHandler{
		filePath: filePath,
		interval: time.Second,
	}
}

// LogPeriodicUpdates prints a per-second update of the run progress and per-status statistics
// until statusChan is closed.
func (h *StatusHandler) LogPeriodicUpdates(statusChan <-chan string, wg *sync.WaitGroup) error {
	defer wg.Done()
	var f *os.File
	if h.filePath == "" || h.filePath == "-" {
		f = os.Stderr
	} else {
		var err error
		f, err = os.OpenFile(h.filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, util.DefaultFilePermissions)
		if err != nil {
			for range statusChan {
			}
			return errors.Wrap(err, "unable to open status file")
		}
		defer func(f *os.File) {
			if err := f.Close(); err != nil {
				log.Errorf("unable to close status file: %v", err)
			}
		}(f)
	}
	if err := h.statusLoop(statusChan, f); err != nil {
		for range statusChan {
		}
		return errors.Wrap(err, "error encountered in status loop")
	}
	return nil
}

func (h *StatusHandler) statusLoop(statusChan <-chan string, statusFile io.Writer) error {
	stats := runStats{
		statusOccurance: make(map[string]int),
		startTime:       time.Now(),
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
statusLoop:
	for {
		select {
		case <-ticker.C:
			if _, err := io.WriteString(statusFile, stats.line("")); err != nil {
				return errors.Wrap(err, "unable to write periodic status update")
			}
		case status, ok := <-statusChan:
			if !ok {
				break statusLoop
			}
			stats.scenariosRun++
			if status == statusPass {
				stats.scenariosPassed++
			}
			stats.statusOccurance[status]++
		}
	}
	if _, err := io.WriteString(statusFile, stats.line("Run Complete; ")); err != nil {
		return errors.Wrap(err, "unable to write final status update")
	}
	return nil
}

func (s *runStats) line(state string) string {
	elapsed := time.Since(s.startTime)
	passRate := 0.0
	if s.scenariosRun > 0 {
		passRate = float64(s.scenariosPassed*100) / float64(s.scenariosRun)
	}
	return fmt.Sprintf("%02dh:%02dm:%02ds; %s%d scenarios run; %.02f scenarios/sec; %.01f%% pass rate; %s\n",
		int(elapsed.Hours()),
		int(elapsed.Minutes())%60,
		int(elapsed.Seconds())%60,
		state,
		s.scenariosRun,
		float64(s.scenariosRun)/elapsed.Seconds(),
		passRate,
		getStatusOccurrenceString(s.statusOccurance))
}

func getStatusOccurrenceString(statusOccurrences map[string]int) string {
	type statusAndOccurrence struct {
		status     string
		occurrence int
	}
	statusesAndOccurrences := make([]statusAndOccurrence, 0, len(statusOccurrences))
	for status, occurrence := range statusOccurrences {
		statusesAndOccurrences = append(statusesAndOccurrences, statusAndOccurrence{
			status:     status,
			occurrence: occurrence,
		})
	}
	// most frequent first, ties by name so the line is stable
	sort.Slice(statusesAndOccurrences, func(i, j int) bool {
		if statusesAndOccurrences[i].occurrence != statusesAndOccurrences[j].occurrence {
			return statusesAndOccurrences[i].occurrence > statusesAndOccurrences[j].occurrence
		}
		return statusesAndOccurrences[i].status < statusesAndOccurrences[j].status
	})
	strSlice := make([]string, 0, len(statusesAndOccurrences))
	for _, statusOccurrence := range statusesAndOccurrences {
		strSlice = append(strSlice, fmt.Sprintf("%s: %d", statusOccurrence.status, statusOccurrence.occurrence))
	}
	return strings.Join(strSlice, ", ")
}
