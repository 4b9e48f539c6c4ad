package nt

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// splitHostPort accepts "host", "host:port", a bare IP address (IPv6
// included) and "[ipv6]" or "[ipv6]:port". A missing port is 0.
func splitHostPort(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, fmt.Errorf("empty server address")
	}
	if net.ParseIP(s) != nil {
		return s, 0, nil
	}

	if strings.HasPrefix(s, "[") {
		if strings.HasSuffix(s, "]") {
			return bracketedHost(s[1 : len(s)-1])
		}
	} else {
		switch strings.Count(s, ":") {
		case 0:
			return s, 0, nil
		case 1:
		default:
			return "", 0, fmt.Errorf("invalid address %q: bracket IPv6 addresses that carry a port", s)
		}
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		return "", 0, fmt.Errorf("missing host in %q", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

func bracketedHost(h string) (string, int, error) {
	if net.ParseIP(h) == nil {
		return "", 0, fmt.Errorf("invalid IPv6 address %q", h)
	}
	return h, 0, nil
}
