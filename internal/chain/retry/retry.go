package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Class partitions chain query failures into retry-worthy and not.
type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

// Decision is the outcome of classifying one error.
type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool { return d.Class == ClassTransient }

// marked is an error pinned to a class at the point it was raised,
// overriding message inspection.
type marked struct {
	cause  error
	class  Class
	reason string
}

func (m *marked) Error() string { return m.cause.Error() }
func (m *marked) Unwrap() error { return m.cause }

// Transient pins err as retryable.
func Transient(err error) error {
	return pin(err, ClassTransient, "explicit_transient")
}

// Terminal pins err as not worth retrying.
func Terminal(err error) error {
	return pin(err, ClassTerminal, "explicit_terminal")
}

func pin(err error, class Class, reason string) error {
	if err == nil {
		return nil
	}
	return &marked{cause: err, class: class, reason: reason}
}

// Classify decides whether err is worth another attempt. Explicit pins win,
// then well-known sentinel and net errors, then message inspection. Unknown
// errors default to terminal so a broken query is never retried forever.
func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var m *marked
	if errors.As(err, &m) {
		return Decision{Class: m.class, Reason: m.reason}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	case errors.Is(err, context.DeadlineExceeded):
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	return classifyMessage(strings.ToLower(err.Error()))
}

// messageRules maps substrings of well-known failure text to a class.
// Terminal rules come first: a message matching both never retries.
var messageRules = []struct {
	class  Class
	reason string
	tokens []string
}{
	{
		class:  ClassTerminal,
		reason: "message_terminal",
		tokens: []string{
			"cannot query field", "unknown field", "unknown argument",
			"invalid argument", "parse error", "malformed",
			"unauthorized", "forbidden", "not found",
		},
	},
	{
		class:  ClassTransient,
		reason: "message_transient",
		tokens: []string{
			"timeout", "timed out", "temporar", "unavailable",
			"connection reset", "connection refused", "broken pipe",
			"econnreset", "econnrefused", "too many requests",
			"rate limit", "http status 429", "http status 502",
			"http status 503", "http status 504",
			"server closed idle connection",
		},
	},
}

func classifyMessage(msg string) Decision {
	for _, rule := range messageRules {
		for _, token := range rule.tokens {
			if strings.Contains(msg, token) {
				return Decision{Class: rule.class, Reason: rule.reason}
			}
		}
	}
	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}
