package threat

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	ipv4Pattern  = regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$`)
	urlPattern   = regexp.MustCompile(`^https?://`)
	hashPattern  = regexp.MustCompile(`^(?:[a-fA-F0-9]{32}|[a-fA-F0-9]{40}|[a-fA-F0-9]{64})$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	labelPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)
	tldPattern   = regexp.MustCompile(`^[a-zA-Z]{2,}$`)
)

// Classify guesses the type of an indicator from its shape. The tests run
// in order: dotted-quad IPv4, http(s) URL, MD5/SHA-1/SHA-256 hex hash,
// email, with domain as the catch-all. Classification is best-effort;
// callers must gate on Valid before trusting the result.
func Classify(value string) Type {
	switch {
	case ipv4Pattern.MatchString(value):
		return TypeIP
	case urlPattern.MatchString(value):
		return TypeURL
	case hashPattern.MatchString(value):
		return TypeHash
	case emailPattern.MatchString(value):
		return TypeEmail
	default:
		return TypeDomain
	}
}

// Valid reports whether value is a well-formed indicator of the claimed
// type. This is the hard gate applied before storage.
func Valid(value string, t Type) bool {
	if len(value) < 3 {
		return false
	}
	switch t {
	case TypeIP:
		return validIPv4(value)
	case TypeDomain:
		return validDomain(value)
	case TypeHash:
		return hashPattern.MatchString(value)
	case TypeURL:
		u, err := url.Parse(value)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	case TypeEmail:
		return emailPattern.MatchString(value)
	default:
		return false
	}
}

func validIPv4(value string) bool {
	if !ipv4Pattern.MatchString(value) {
		return false
	}
	for _, octet := range strings.Split(value, ".") {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func validDomain(value string) bool {
	if len(value) > 253 {
		return false
	}
	labels := strings.Split(value, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 || !labelPattern.MatchString(label) {
			return false
		}
	}
	return tldPattern.MatchString(labels[len(labels)-1])
}
