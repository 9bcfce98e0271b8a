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
	"sync"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/liip/sheriff"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/zmap/zverify/src/capture"
	"github.com/zmap/zverify/src/internal/util"
	"github.com/zmap/zverify/src/scenario"
	"github.com/zmap/zverify/src/verify"
)

const (
	statusPass  = "PASS"
	statusFail  = "FAIL"
	statusError = "ERROR"
)

var outputVersion = version.Must(version.NewVersion("0.0.0"))

type job struct {
	suite    *scenario.Suite
	scenario *scenario.Scenario
}

type routineMetadata struct {
	Scenarios int
	Status    map[string]int
}

type Metadata struct {
	Suites         int                 `json:"suites"`
	Scenarios      int                 `json:"scenarios"`
	Status         map[string]int      `json:"statuses"`
	StartTime      string              `json:"start_time"`
	EndTime        string              `json:"end_time"`
	NameServer     string              `json:"name_server,omitempty"`
	Transport      string              `json:"transport"`
	Timeout        int                 `json:"timeout"`
	Retries        int                 `json:"retries"`
	Conf           *ApplicationOptions `json:"conf"`
	ZVerifyVersion string              `json:"zverify_version"`
}

// Passed reports whether every scenario passed.
func (m *Metadata) Passed() bool {
	return m.Status[statusPass] == m.Scenarios
}

// Failure describes the first constraint a captured result violated.
type Failure struct {
	Kind    verify.ErrorKind `json:"kind" groups:"short,normal,long,trace"`
	Section verify.Section   `json:"section,omitempty" groups:"short,normal,long,trace"`
	Pattern string           `json:"pattern,omitempty" groups:"normal,long,trace"`
	Want    string           `json:"want,omitempty" groups:"normal,long,trace"`
	Got     string           `json:"got,omitempty" groups:"normal,long,trace"`
}

// Outcome is the output record of one scenario.
type Outcome struct {
	Suite      string         `json:"suite" groups:"short,normal,long,trace"`
	Scenario   string         `json:"scenario" groups:"short,normal,long,trace"`
	Status     string         `json:"status" groups:"short,normal,long,trace"`
	Query      string         `json:"query,omitempty" groups:"normal,long,trace"`
	NameServer string         `json:"name_server,omitempty" groups:"normal,long,trace"`
	Failure    *Failure       `json:"failure,omitempty" groups:"short,normal,long,trace"`
	Error      string         `json:"error,omitempty" groups:"short,normal,long,trace"`
	Result     *verify.Result `json:"result,omitempty" groups:"long,trace"`
	Timestamp  string         `json:"timestamp" groups:"normal,long,trace"`
	Duration   float64        `json:"duration" groups:"long,trace"` // in seconds
}

// Run verifies every scenario of the suites named by args, or by the configured input
// handler when args is empty, and writes one JSON line per scenario.
func Run(ctx context.Context, gc CLIConf, args []string) (*Metadata, error) {
	if err := populateCLIConfig(&gc, args); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	startTime := time.Now().Format(gc.TimeFormat)

	suites, err := loadSuites(ctx, gc.InputHandler)
	if err != nil {
		return nil, err
	}
	var jobs []job
	for _, s := range suites {
		for i := range s.Scenarios {
			jobs = append(jobs, job{suite: s, scenario: &s.Scenarios[i]})
		}
	}
	log.Infof("verifying %d scenarios from %d suites", len(jobs), len(suites))

	var bar *progressbar.ProgressBar
	if !gc.Quiet && len(jobs) > 0 {
		bar = progressbar.Default(int64(len(jobs)), "verifying")
	}

	jobChan := make(chan job)
	outChan := make(chan string)
	metaChan := make(chan routineMetadata, gc.Threads)
	var statusChan chan string
	handlerErrs := make(chan error, 2)
	// routineWG is released by the handlers themselves, handlerWG once their errors are reported
	var routineWG, handlerWG sync.WaitGroup

	routineWG.Add(1)
	handlerWG.Add(1)
	go func() {
		defer handlerWG.Done()
		if outErr := gc.OutputHandler.WriteResults(outChan, &routineWG); outErr != nil {
			handlerErrs <- errors.Wrap(outErr, "could not write output results from output channel")
		}
	}()
	if gc.StatusHandler != nil {
		statusChan = make(chan string)
		routineWG.Add(1)
		handlerWG.Add(1)
		go func() {
			defer handlerWG.Done()
			if statusErr := gc.StatusHandler.LogPeriodicUpdates(statusChan, &routineWG); statusErr != nil {
				handlerErrs <- errors.Wrap(statusErr, "could not write status updates")
			}
		}()
	}
	go func() {
		defer close(jobChan)
		for _, j := range jobs {
			select {
			case jobChan <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	// create pool of worker goroutines
	var workerWG sync.WaitGroup
	workerWG.Add(gc.Threads)
	for i := 0; i < gc.Threads; i++ {
		go doVerifyWorker(ctx, &gc, jobChan, outChan, statusChan, bar, metaChan, &workerWG)
	}
	workerWG.Wait()
	close(outChan)
	if statusChan != nil {
		close(statusChan)
	}
	close(metaChan)
	routineWG.Wait()
	handlerWG.Wait()
	close(handlerErrs)
	if bar != nil {
		if err = bar.Finish(); err != nil {
			log.Debugf("unable to finish progress bar: %v", err)
		}
	}

	// we're done processing data. aggregate all the data from individual routines
	metaData := aggregateMetadata(metaChan)
	metaData.Suites = len(suites)
	metaData.StartTime = startTime
	metaData.EndTime = time.Now().Format(gc.TimeFormat)
	metaData.NameServer = gc.NameServer
	metaData.Transport = gc.Transport
	metaData.Timeout = gc.Timeout
	metaData.Retries = gc.Retries
	metaData.Conf = &gc.ApplicationOptions
	if gc.MetadataFilePath != "" {
		if err = writeMetadata(gc.MetadataFilePath, &metaData); err != nil {
			return &metaData, err
		}
	}
	if handlerErr, ok := <-handlerErrs; ok {
		return &metaData, handlerErr
	}
	return &metaData, nil
}

// loadSuites reads every suite path the input handler produces.
func loadSuites(ctx context.Context, in InputHandler) ([]*scenario.Suite, error) {
	paths := make(chan string)
	var wg sync.WaitGroup
	wg.Add(1)
	feedErr := make(chan error, 1)
	go func() {
		feedErr <- in.FeedChannel(ctx, paths, &wg)
	}()
	var (
		suites  []*scenario.Suite
		loadErr error
	)
	for path := range paths {
		if loadErr != nil {
			continue
		}
		s, err := scenario.LoadFile(path)
		if err != nil {
			loadErr = err
			continue
		}
		suites = append(suites, s)
	}
	wg.Wait()
	if err := <-feedErr; err != nil {
		return nil, errors.Wrap(err, "could not read suite list")
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return suites, nil
}

// doVerifyWorker is a single worker thread that verifies scenarios from the job channel. It calls wg.Done when it is finished.
func doVerifyWorker(ctx context.Context, gc *CLIConf, jobs <-chan job, output chan<- string, statusChan chan<- string, bar *progressbar.ProgressBar, metaChan chan<- routineMetadata, wg *sync.WaitGroup) {
	defer wg.Done()
	metadata := routineMetadata{Status: make(map[string]int)}
	for j := range jobs {
		outcome := runScenario(ctx, gc, j)
		data, err := sheriff.Marshal(&sheriff.Options{Groups: gc.OutputGroups, ApiVersion: outputVersion}, outcome)
		if err != nil {
			log.Errorf("unable to marshal outcome of %q to JSON: %v", outcome.Scenario, err)
		} else if jsonRes, err := json.Marshal(data); err != nil {
			log.Errorf("unable to marshal JSON outcome of %q: %v", outcome.Scenario, err)
		} else {
			output <- string(jsonRes)
		}
		if statusChan != nil {
			statusChan <- outcome.Status
		}
		if bar != nil {
			if err = bar.Add(1); err != nil {
				log.Debugf("unable to update progress bar: %v", err)
			}
		}
		metadata.Scenarios++
		metadata.Status[outcome.Status]++
	}
	metaChan <- metadata
}

func runScenario(ctx context.Context, gc *CLIConf, j job) *Outcome {
	sc := j.scenario
	logger := log.WithFields(log.Fields{"suite": j.suite.Path, "scenario": sc.Name})
	out := &Outcome{Suite: j.suite.Path, Scenario: sc.Name}
	start := time.Now()
	defer func() {
		out.Timestamp = start.Format(gc.TimeFormat)
		out.Duration = time.Since(start).Seconds()
	}()
	fail := func(err error) *Outcome {
		out.Status = statusError
		out.Error = err.Error()
		logger.Errorf("scenario could not be verified: %v", err)
		return out
	}

	vars := j.suite.Resolve(gc.Vars)
	exp, err := sc.Expectation(vars)
	if err != nil {
		return fail(errors.Wrap(err, "invalid expectation"))
	}
	res, err := captureResult(ctx, gc, j, vars, out)
	if err != nil {
		return fail(err)
	}
	out.Result = res

	v := &verify.Verifier{Logger: logger, DumpGroups: gc.OutputGroups}
	if err = v.Verify(res, exp); err != nil {
		var ve *verify.Error
		if !errors.As(err, &ve) {
			return fail(err)
		}
		out.Status = statusFail
		out.Error = ve.Summary()
		out.Failure = &Failure{Kind: ve.Kind, Section: ve.Section, Want: ve.Want, Got: ve.Got}
		if len(ve.Pattern) > 0 {
			out.Failure.Pattern = ve.Pattern.String()
		}
		// the message carries the captured result, which the normal output group leaves out
		logger.Warn(ve.Error())
		return out
	}
	out.Status = statusPass
	return out
}

// captureResult obtains the response of a scenario, from its capture file when it has one and
// from a live query otherwise.
func captureResult(ctx context.Context, gc *CLIConf, j job, vars scenario.Vars, out *Outcome) (*verify.Result, error) {
	sc := j.scenario
	var (
		q   capture.Question
		err error
	)
	if sc.Query.Name != "" {
		if q, err = sc.Question(vars); err != nil {
			return nil, errors.Wrap(err, "invalid query")
		}
		out.Query = q.String()
	}
	if sc.CaptureFile != "" {
		return gc.CaptureCache.ParseDigFile(j.suite.CapturePath(sc))
	}

	ns, err := sc.NameServer(vars, gc.NameServer)
	if err != nil {
		return nil, err
	}
	if ns, err = util.AddDefaultPortToDNSServerName(ns); err != nil {
		return nil, errors.Wrapf(err, "invalid name server %q", sc.Server)
	}
	out.NameServer = ns
	if err = checkBlacklist(gc, ns); err != nil {
		return nil, err
	}
	return gc.Querier.Query(ctx, ns, q)
}

func checkBlacklist(gc *CLIConf, ns string) error {
	if gc.Blacklist == nil {
		return nil
	}
	ip, _, err := util.SplitHostPort(ns)
	if err != nil {
		return err
	}
	blacklisted, err := gc.Blacklist.Contains(ip.String())
	if err != nil {
		log.Debugf("unable to check %s against the blacklist: %v", ip, err)
		return nil
	}
	if blacklisted {
		return errors.Errorf("name server %s is blacklisted", ns)
	}
	return nil
}

func aggregateMetadata(c <-chan routineMetadata) Metadata {
	var meta Metadata
	meta.ZVerifyVersion = zverifyCLIVersion
	meta.Status = make(map[string]int)
	for m := range c {
		meta.Scenarios += m.Scenarios
		for k, v := range m.Status {
			meta.Status[k] += v
		}
	}
	return meta
}

func writeMetadata(path string, metaData *Metadata) error {
	j, err := json.Marshal(metaData)
	if err != nil {
		return errors.Wrap(err, "unable to JSON encode metadata")
	}
	if path == "-" {
		_, err = os.Stderr.Write(append(j, '\n'))
		return errors.Wrap(err, "unable to write metadata")
	}
	if err = os.WriteFile(path, j, util.DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "unable to write metadata file")
	}
	return nil
}
