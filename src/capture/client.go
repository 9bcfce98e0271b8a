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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zmap/zverify/src/internal/util"
	"github.com/zmap/zverify/src/verify"
)

const DefaultTimeout = 5 * time.Second

// Client queries name servers in-process.
type Client struct {
	TCPOnly          bool
	Timeout          time.Duration
	Retries          int // additional attempts after a failed exchange
	DisableRecursion bool
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Query sends q to nameServer. A truncated UDP response is retried over TCP.
func (c *Client) Query(ctx context.Context, nameServer string, q Question) (*verify.Result, error) {
	addr, err := util.AddDefaultPortToDNSServerName(nameServer)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid name server %q", nameServer)
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(q.Name), q.Type)
	m.Question[0].Qclass = q.Class
	m.RecursionDesired = !c.DisableRecursion

	network := "udp"
	if c.TCPOnly {
		network = "tcp"
	}
	var lastErr error
	for try := 0; try <= c.Retries; try++ {
		if util.HasCtxExpired(ctx) {
			return nil, errors.Wrap(ctx.Err(), "query cancelled")
		}
		start := time.Now()
		r, rtt, err := c.exchange(ctx, network, m, addr)
		if err == nil && r.Truncated && network == "udp" {
			log.Debugf("response for %s from %s truncated, retrying over TCP", q, addr)
			r, rtt, err = c.exchange(ctx, "tcp", m, addr)
		}
		if err != nil {
			lastErr = err
			log.Debugf("query %s to %s failed (try %d): %v", q, addr, try+1, err)
			continue
		}
		res := FromMsg(r)
		res.Server = addr
		res.Timestamp = start.Format(time.RFC3339)
		res.Duration = rtt.Seconds()
		return res, nil
	}
	return nil, errors.Wrapf(lastErr, "query %s to %s failed", q, addr)
}

func (c *Client) exchange(ctx context.Context, network string, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error) {
	client := &dns.Client{Net: network, Timeout: c.timeout()}
	return client.ExchangeContext(ctx, m, addr)
}

// DigRunner captures responses by running the dig binary and parsing its output.
type DigRunner struct {
	Path      string // defaults to "dig" from PATH
	TCPOnly   bool
	Timeout   time.Duration
	Retries   int
	ExtraArgs []string
}

func (d *DigRunner) args(ip string, port int, q Question) []string {
	args := []string{
		"@" + ip,
		"-p", strconv.Itoa(port),
		"-c", dns.Class(q.Class).String(),
		"-t", dns.Type(q.Type).String(),
		"-q", dns.Fqdn(q.Name),
		fmt.Sprintf("+tries=%d", d.Retries+1),
	}
	if d.Timeout > 0 {
		args = append(args, fmt.Sprintf("+time=%d", int(d.Timeout.Seconds()+0.5)))
	}
	if d.TCPOnly {
		args = append(args, "+tcp")
	}
	return append(args, d.ExtraArgs...)
}

func (d *DigRunner) Query(ctx context.Context, nameServer string, q Question) (*verify.Result, error) {
	addr, err := util.AddDefaultPortToDNSServerName(nameServer)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid name server %q", nameServer)
	}
	ip, port, err := util.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	path := d.Path
	if path == "" {
		path = "dig"
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, path, d.args(ip.String(), port, q)...)
	out, runErr := cmd.Output()
	res, err := ParseDig(bytes.NewReader(out))
	if err != nil {
		if runErr != nil {
			return nil, errors.Wrapf(runErr, "dig failed (%v)", err)
		}
		return nil, err
	}
	if res.Timestamp == "" {
		res.Timestamp = start.Format(time.RFC3339)
	}
	if res.Server == "" {
		res.Server = addr
	}
	return res, nil
}
