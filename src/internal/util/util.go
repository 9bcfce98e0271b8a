/*
 * ZDNS Copyright 2022 Regents of the University of Michigan
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

package util

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

const (
	EnvPrefix              = "ZVERIFY"
	DefaultFilePermissions = 0644 // rw-r--r--
	DefaultDNSPort         = "53"
)

// AddDefaultPortToDNSServerName validates a name server address and appends port 53 if none is given.
func AddDefaultPortToDNSServerName(inAddr string) (string, error) {
	// Try to split host and port to see if the port is already specified.
	host, port, err := net.SplitHostPort(inAddr)
	if err != nil {
		// might mean there's no port specified
		host = inAddr
	}

	// Validate the host part as an IP address.
	ip := net.ParseIP(host)
	if ip == nil {
		return "", errors.New("invalid IP address")
	}

	// If the original input does not have a port, specify port 53
	if port == "" {
		port = DefaultDNSPort
	}

	return net.JoinHostPort(ip.String(), port), nil
}

func SplitHostPort(inaddr string) (net.IP, int, error) {
	host, port, err := net.SplitHostPort(inaddr)
	if err != nil {
		return nil, 0, err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, 0, errors.Errorf("invalid IP address: %s", host)
	}

	portInt, err := strconv.Atoi(port)
	if err != nil {
		return nil, 0, errors.Wrap(err, "invalid port")
	}

	return ip, portInt, nil
}

// HasCtxExpired checks if the context has expired. Common function used in various places.
func HasCtxExpired(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Contains checks if a value is in a slice.
func Contains[T comparable](slice []T, entity T) bool {
	for _, v := range slice {
		if v == entity {
			return true
		}
	}
	return false
}

func RemoveDuplicates[T comparable](slice []T) []T {
	lookup := make(map[T]struct{}, len(slice)) // prealloc for performance
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := lookup[v]; !ok {
			lookup[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}
