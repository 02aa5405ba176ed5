package fetch

import "strings"

// Class buckets a failed attempt into the retry/backoff policy it gets.
// Keeping classification separate from the retry loop means the backoff
// logic exists exactly once.
type Class int

const (
	// ClassOK is a successful response.
	ClassOK Class = iota
	// ClassNotFound is the remote saying the object does not exist.
	// Absence of data is expected, terminal, and not a fault.
	ClassNotFound
	// ClassBanned is the remote's ban signal (HTTP 418). Never retried;
	// continuing to send requests extends the ban.
	ClassBanned
	// ClassRateLimited covers explicit throttling (403 WAF, 429, 503) and
	// transport errors that look like disguised throttling.
	ClassRateLimited
	// ClassTransport is any other network or HTTP failure.
	ClassTransport
)

// String returns a short label for logs and outcome reasons.
func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassNotFound:
		return "not-found"
	case ClassBanned:
		return "banned"
	case ClassRateLimited:
		return "rate-limited"
	case ClassTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// rateLimitFragments are error-message substrings that in practice mean the
// remote is throttling at the connection layer rather than answering with a
// status code. This is an operational heuristic learned from the service's
// behavior, not a protocol guarantee: per its operator, TLS handshake
// failures and connection resets during sustained downloading are rate
// limiting in disguise.
var rateLimitFragments = []string{"tls", "ssl", "eof", "protocol", "connection", "reset"}

// Classify maps an HTTP status or transport error onto its policy class.
// err takes precedence over status; a nil err with a 2xx status is ClassOK.
func Classify(status int, err error) Class {
	if err != nil {
		msg := strings.ToLower(err.Error())
		for _, fragment := range rateLimitFragments {
			if strings.Contains(msg, fragment) {
				return ClassRateLimited
			}
		}
		return ClassTransport
	}

	switch {
	case status >= 200 && status < 300:
		return ClassOK
	case status == 404:
		return ClassNotFound
	case status == 418:
		return ClassBanned
	case status == 403 || status == 429 || status == 503:
		return ClassRateLimited
	default:
		return ClassTransport
	}
}
