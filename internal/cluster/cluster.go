// Package cluster describes the static fleet of factorial servers a client
// computes against.
//
// There is no discovery and no registration: the fleet is a trusted,
// immutable list of endpoints loaded once from a text file at client startup.
// The file carries one host:port entry per line; blank lines and lines
// starting with '#' are comments. Malformed entries are skipped with a
// warning rather than failing the run, so one typo does not take down a
// computation across the rest of the fleet.
package cluster

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Endpoint identifies one factorial server.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the dialable host:port form of the endpoint.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String implements fmt.Stringer for log output.
func (e Endpoint) String() string {
	return e.Addr()
}

// LoadEndpoints reads a server list file and returns the valid endpoints in
// file order. Skipped lines are logged as warnings. Only an unreadable file
// is an error; an empty result with a nil error means the file held no valid
// entries, which callers treat as fatal on their own terms.
func LoadEndpoints(path string, logger *zap.Logger) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open server list: %w", err)
	}
	defer f.Close()

	return parseEndpoints(f, logger), nil
}

func parseEndpoints(r io.Reader, logger *zap.Logger) []Endpoint {
	var endpoints []Endpoint
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		host, portStr, err := net.SplitHostPort(line)
		if err != nil || host == "" {
			logger.Warn("skipping malformed server entry",
				zap.Int("line", lineno),
				zap.String("entry", line))
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			logger.Warn("skipping server entry with invalid port",
				zap.Int("line", lineno),
				zap.String("entry", line))
			continue
		}
		endpoints = append(endpoints, Endpoint{Host: host, Port: port})
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("server list read stopped early", zap.Error(err))
	}
	return endpoints
}
