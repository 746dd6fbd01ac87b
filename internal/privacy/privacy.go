// Package privacy scrubs credentials and host names from text that leaves
// the station, such as error reports and notification failures.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// urlPattern finds scheme://... tokens, which covers broker, service and DSN URLs.
var urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>]+`)

// ScrubMessage replaces every URL in message with its anonymized form.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
}

// AnonymizeURL keeps the scheme, host class and port of rawURL and replaces
// everything else with a short stable hash, so equal URLs still group
// together in reports.
func AnonymizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return fmt.Sprintf("url-%x", hash(rawURL))
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(categorizeHost(u.Hostname()))
	if port := u.Port(); port != "" {
		b.WriteString(":" + port)
	}
	b.WriteString(fmt.Sprintf("/%x", hash(u.Host+u.Path)))
	return b.String()
}

// RedactUserinfo removes the password from rawURL, for log lines where the
// host is still useful.
func RedactUserinfo(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	} else {
		u.User = url.User("xxxxx")
	}
	return u.String()
}

func hash(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:6]
}

func categorizeHost(host string) string {
	switch {
	case host == "":
		return "no-host"
	case host == "localhost":
		return "localhost"
	}
	ip := net.ParseIP(host)
	switch {
	case ip == nil:
		return "hostname"
	case ip.IsLoopback():
		return "localhost"
	case ip.IsPrivate():
		return "private-ip"
	default:
		return "public-ip"
	}
}
