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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zmap/zverify/src/capture"
	"github.com/zmap/zverify/src/cli/iohandlers"
	"github.com/zmap/zverify/src/internal/ipset"
	"github.com/zmap/zverify/src/internal/util"
)

var resultVerbosities = []string{"short", "normal", "long", "trace"}

// populateCLIConfig validates the command line options and fills in the derived fields of gc.
func populateCLIConfig(gc *CLIConf, suitePaths []string) error {
	if gc.LogFilePath != "" && gc.LogFilePath != "-" {
		f, err := os.OpenFile(gc.LogFilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, util.DefaultFilePermissions)
		if err != nil {
			return errors.Wrapf(err, "unable to open log file (%s)", gc.LogFilePath)
		}
		log.SetOutput(f)
	}

	// Translate the assigned verbosity level to a logrus log level.
	switch gc.Verbosity {
	case 1: // Fatal
		log.SetLevel(log.FatalLevel)
	case 2: // Error
		log.SetLevel(log.ErrorLevel)
	case 3: // Warnings  (default)
		log.SetLevel(log.WarnLevel)
	case 4: // Information, includes every matching result
		log.SetLevel(log.InfoLevel)
	case 5: // Debugging, includes every record that did not match
		log.SetLevel(log.DebugLevel)
	default:
		return errors.New("unknown verbosity level specified. Must be between 1 (lowest)--5 (highest)")
	}

	if gc.Threads < 1 {
		return errors.New("invalid argument for --threads. Must be >= 1")
	}
	if gc.Timeout < 1 {
		return errors.New("invalid argument for --timeout. Must be >= 1")
	}
	if gc.Retries < 0 {
		return errors.New("invalid argument for --retries. Must be >= 0")
	}

	if gc.UseNanoseconds {
		gc.TimeFormat = time.RFC3339Nano
	} else {
		gc.TimeFormat = time.RFC3339
	}

	// Output Groups are defined by a base + any additional fields that the user wants
	if !util.Contains(resultVerbosities, gc.ResultVerbosity) {
		return fmt.Errorf("invalid result verbosity %q. Options: %s", gc.ResultVerbosity, strings.Join(resultVerbosities, ", "))
	}
	gc.OutputGroups = []string{gc.ResultVerbosity}
	for _, g := range strings.Split(gc.IncludeInOutput, ",") {
		if g = strings.TrimSpace(g); g != "" {
			gc.OutputGroups = append(gc.OutputGroups, g)
		}
	}
	gc.OutputGroups = util.RemoveDuplicates(gc.OutputGroups)

	if gc.NameServerString != "" {
		ns, err := util.AddDefaultPortToDNSServerName(gc.NameServerString)
		if err != nil {
			return errors.Wrapf(err, "could not parse name server %s", gc.NameServerString)
		}
		gc.NameServer = ns
	}

	vars, err := populateVars(gc.VarsString, os.Environ())
	if err != nil {
		return errors.Wrap(err, "suite variables did not pass validation")
	}
	gc.Vars = vars

	if gc.BlacklistFilePath != "" {
		gc.Blacklist = ipset.New()
		if err = gc.Blacklist.ParseFromFile(gc.BlacklistFilePath); err != nil {
			return errors.Wrap(err, "unable to parse blacklist file")
		}
	}

	if gc.CacheSize < 0 {
		return errors.New("invalid argument for --cache-size. Must be >= 0")
	}
	if gc.CaptureCache == nil {
		gc.CaptureCache = capture.NewFileCache(gc.CacheSize)
	}

	if gc.Querier == nil {
		if gc.Querier, err = newQuerier(gc); err != nil {
			return err
		}
	}

	// setup i/o if not specified
	if len(suitePaths) > 0 {
		gc.InputHandler = iohandlers.NewStringSliceInputHandler(suitePaths)
	} else if gc.InputHandler == nil {
		if gc.InputFilePath == "" {
			return errors.New("no suites given. Pass suite files as arguments or list them with --input-file")
		}
		gc.InputHandler = iohandlers.NewFileInputHandler(gc.InputFilePath)
	}
	if gc.OutputHandler == nil {
		gc.OutputHandler = iohandlers.NewFileOutputHandler(gc.OutputFilePath)
	}
	if gc.StatusHandler == nil && gc.StatusUpdatesFile != "" {
		gc.StatusHandler = iohandlers.NewStatusHandler(gc.StatusUpdatesFile)
	}
	return nil
}

func newQuerier(gc *CLIConf) (capture.Querier, error) {
	timeout := time.Duration(gc.Timeout) * time.Second
	switch gc.Transport {
	case transportMiekg:
		return &capture.Client{
			TCPOnly:          gc.TCPOnly,
			Timeout:          timeout,
			Retries:          gc.Retries,
			DisableRecursion: gc.NoRecursion,
		}, nil
	case transportDig:
		d := &capture.DigRunner{
			Path:    gc.DigPath,
			TCPOnly: gc.TCPOnly,
			Timeout: timeout,
			Retries: gc.Retries,
		}
		if gc.NoRecursion {
			d.ExtraArgs = append(d.ExtraArgs, "+norecurse")
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown transport %q. Options: %s, %s", gc.Transport, transportMiekg, transportDig)
}

// populateVars merges ZVERIFY_VAR_<KEY> environment variables with the --vars option, the
// latter taking precedence.
func populateVars(varsString string, environ []string) (map[string]string, error) {
	vars := make(map[string]string)
	envPrefix := util.EnvPrefix + "_VAR_"
	for _, kv := range environ {
		if !strings.HasPrefix(kv, envPrefix) {
			continue
		}
		k, v, _ := strings.Cut(strings.TrimPrefix(kv, envPrefix), "=")
		if k != "" {
			vars[k] = v
		}
	}
	if varsString == "" {
		return vars, nil
	}

	var pairs []string
	if varsString[0] == '@' {
		path := varsString[1:]
		f, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read vars file (%s)", path)
		}
		for _, line := range strings.Split(string(f), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			pairs = append(pairs, line)
		}
	} else {
		pairs = strings.Split(varsString, ",")
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid variable %q. Must be KEY=VALUE", pair)
		}
		vars[k] = strings.TrimSpace(v)
	}
	return vars, nil
}
