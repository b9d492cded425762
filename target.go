package k8sdns

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/grpc/resolver"
)

// ParsedTarget is the immutable result of parsing a resolver target URI.
//
// Host is always a fully-qualified, absolute DNS name (trailing dot
// included). HostStr is the same name without the trailing dot, for use in
// error messages and log lines.
type ParsedTarget struct {
	Authority string
	Host      string
	HostStr   string
	Port      uint16
}

// ParseTarget decodes target into a ParsedTarget.
//
// Accepted forms (scheme already stripped by the caller, per
// resolver.Target):
//
//	//host
//	//host:port
//	///host
//	///host:port
//
// If target carries no authority, its Endpoint/path is reinterpreted as the
// authority, which is how the "scheme:///host[:port]" shape is supported.
// An absent port defaults to defaultPort.
func ParseTarget(target resolver.Target, defaultPort uint16) (*ParsedTarget, error) {
	authority, err := authorityOf(target)
	if err != nil {
		return nil, &TargetError{URI: targetString(target), cause: err}
	}

	host, port, err := splitHostPort(authority, defaultPort)
	if err != nil {
		return nil, &TargetError{URI: targetString(target), cause: err}
	}

	fqdn, err := normalizeHost(host)
	if err != nil {
		return nil, &TargetError{URI: targetString(target), cause: err}
	}

	return &ParsedTarget{
		Authority: authority,
		Host:      fqdn,
		HostStr:   strings.TrimSuffix(fqdn, "."),
		Port:      port,
	}, nil
}

// authorityOf extracts the authority component from target, falling back to
// the path when the authority is empty (the "scheme:///host" shape).
func authorityOf(target resolver.Target) (string, error) {
	if a := target.URL.Host; a != "" {
		return a, nil
	}

	path := target.URL.Path
	if path == "" {
		return "", errors.New("missing host")
	}
	if !strings.HasPrefix(path, "/") {
		return "", errors.Errorf("path %q does not start with '/'", path)
	}

	authority := strings.TrimPrefix(path, "/")
	if authority == "" {
		return "", errors.New("missing host")
	}
	return authority, nil
}

func splitHostPort(authority string, defaultPort uint16) (string, uint16, error) {
	if authority == "" {
		return "", 0, errors.New("missing host")
	}

	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		// No port present at all.
		return authority, defaultPort, nil
	}
	if host == "" {
		return "", 0, errors.New("missing host")
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return "", 0, errors.Errorf("invalid port %q", portStr)
	}
	return host, uint16(port), nil
}

// normalizeHost validates host as an RFC 1035 name and returns its
// fully-qualified (trailing-dot) form.
func normalizeHost(host string) (string, error) {
	if host == "" {
		return "", errors.New("missing host")
	}

	fqdn := host
	if !strings.HasSuffix(fqdn, ".") {
		fqdn += "."
	}

	if !isValidDNSName(fqdn) {
		return "", errors.Errorf("invalid DNS name %q", host)
	}
	return fqdn, nil
}

func isValidDNSName(fqdn string) bool {
	name := strings.TrimSuffix(fqdn, ".")
	if name == "" || len(name) > 253 {
		return false
	}

	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		for i, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			case r == '-' && i != 0 && i != len(label)-1:
			default:
				return false
			}
		}
	}
	return true
}

func targetString(target resolver.Target) string {
	return target.URL.String()
}
