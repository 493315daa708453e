package ratelimit

import (
	"errors"
	"net"
	"strings"
)

// normalizeEndpoint canonicalizes a telemetry endpoint ("host:port") so the
// same agent is always billed against the same shard regardless of case or
// an IPv6 host's bracket style.
func normalizeEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", errors.New("empty endpoint")
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return strings.ToLower(endpoint), nil
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + port, nil
	}
	return host + ":" + port, nil
}
