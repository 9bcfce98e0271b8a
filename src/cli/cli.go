/*
 * ZDNS Copyright 2016 Regents of the University of Michigan
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
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	flags "github.com/zmap/zflags"

	"github.com/zmap/zverify/src/capture"
	"github.com/zmap/zverify/src/internal/ipset"
	"github.com/zmap/zverify/src/internal/util"
)

const (
	zverifyCLIVersion = "1.0.0"

	transportMiekg = "miekg"
	transportDig   = "dig"

	pprofAddr = "localhost:6060"
)

var parser *flags.Parser

type InputHandler interface {
	FeedChannel(ctx context.Context, in chan<- string, wg *sync.WaitGroup) error
}
type OutputHandler interface {
	WriteResults(results <-chan string, wg *sync.WaitGroup) error
}

// StatusHandler is notified of the outcome of every scenario.
type StatusHandler interface {
	LogPeriodicUpdates(statusChan <-chan string, wg *sync.WaitGroup) error
}

type ApplicationOptions struct {
	Threads   int    `short:"t" long:"threads" default:"10" description:"number of scenarios verified concurrently"`
	Timeout   int    `long:"timeout" default:"5" description:"timeout for a single query, in seconds"`
	Retries   int    `long:"retries" default:"1" description:"how many times a query is retried after a timeout or network failure"`
	Transport string `long:"transport" default:"miekg" description:"how queries are sent. Options: miekg (in-process client), dig (run the dig binary)"`
	DigPath   string `long:"dig-path" default:"dig" description:"dig binary used with --transport=dig"`
	TCPOnly   bool   `long:"tcp-only" description:"only send queries over TCP"`
	CacheSize int    `long:"cache-size" default:"1000" description:"how many parsed capture files are kept in memory"`

	NoRecursion      bool   `long:"no-recursion" description:"clear the RD bit on outgoing queries"`
	NameServerString string `long:"name-server" description:"name server queried by scenarios that do not set one. If no port is specified, defaults to 53."`
	VarsString       string `long:"vars" description:"suite variables overriding the ones defined in the suites, as KEY=VALUE pairs separated by commas or via @/path/to/file with one pair per line. ZVERIFY_VAR_<KEY> environment variables are also used."`
	UseNanoseconds   bool   `long:"nanoseconds" description:"use nanosecond resolution timestamps in output"`

	ResultVerbosity string `long:"result-verbosity" default:"normal" description:"sets verbosity of each output record. Options: short, normal, long, trace"`
	IncludeInOutput string `long:"include-fields" description:"comma separated list of output groups to add beyond result verbosity"`
	Verbosity       int    `long:"verbosity" default:"3" description:"log verbosity: 1 (lowest)--5 (highest)"`
	Quiet           bool   `long:"quiet" description:"do not show a progress bar"`

	InputFilePath     string `short:"f" long:"input-file" description:"file listing one suite path per line, used when no suite is passed as an argument. Use '-' for stdin."`
	OutputFilePath    string `short:"o" long:"output-file" default:"-" description:"where should JSON output be saved, defaults to stdout"`
	LogFilePath       string `long:"log-file" default:"-" description:"where should logs be saved, defaults to stderr"`
	MetadataFilePath  string `long:"metadata-file" description:"where should JSON metadata be saved, defaults to no metadata output. Use '-' for stderr."`
	StatusUpdatesFile string `long:"status-updates-file" description:"where should per-second status updates be written, defaults to none. Use '-' for stderr."`
	BlacklistFilePath string `long:"blacklist-file" description:"blacklist file for name servers that must never be queried. Scenarios using them fail with an error."`
}

type CLIConf struct {
	ApplicationOptions
	OutputGroups  []string
	TimeFormat    string
	NameServer    string // default name server, with port
	Vars          map[string]string
	InputHandler  InputHandler
	OutputHandler OutputHandler
	StatusHandler StatusHandler
	Blacklist     *ipset.Set
	Querier       capture.Querier
	CaptureCache  *capture.FileCache
}

// Execute parses the command line, runs every scenario of the given suites and exits with a
// non-zero status unless all of them passed.
func Execute() {
	if pprofEnabled() {
		go func() {
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				log.Errorf("pprof server stopped: %v", err)
			}
		}()
	}
	posArgs, _, _, err := parser.ParseCommandLine(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	summary, err := Run(context.Background(), cliconf, posArgs)
	if err != nil {
		log.Fatal(err)
	}
	if !summary.Passed() {
		fmt.Fprintf(os.Stderr, "%d of %d scenarios did not pass\n", summary.Scenarios-summary.Status[statusPass], summary.Scenarios)
		os.Exit(1)
	}
}

// pprofEnabled reports whether ZVERIFY_PPROF asks for a pprof server.
func pprofEnabled() bool {
	return os.Getenv(util.EnvPrefix+"_PPROF") == "true"
}

var cliconf = CLIConf{}

func init() {
	parser = flags.NewParser(&cliconf, flags.Default)
}
