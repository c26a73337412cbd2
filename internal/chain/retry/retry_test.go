package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "read tcp 10.0.0.1:443: i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestClassify_PinsSurviveWrapping(t *testing.T) {
	pinned := Transient(errors.New("archive flaked"))
	wrapped := fmt.Errorf("events(100..105): %w", pinned)

	d := Classify(wrapped)
	assert.True(t, d.IsTransient())
	assert.Equal(t, "explicit_transient", d.Reason)

	d = Classify(fmt.Errorf("best block: %w", Terminal(errors.New("bad query"))))
	assert.False(t, d.IsTransient())
	assert.Equal(t, "explicit_terminal", d.Reason)
}

func TestClassify_NilAndUnknown(t *testing.T) {
	assert.Equal(t, Decision{ClassTerminal, "nil_error"}, Classify(nil))
	assert.Equal(t, Decision{ClassTerminal, "unknown_terminal_default"},
		Classify(errors.New("unexpected failure")))
}

func TestClassify_Reasons(t *testing.T) {
	cases := map[string]struct {
		err  error
		want Decision
	}{
		"canceled context stops retries": {
			err:  fmt.Errorf("poll head: %w", context.Canceled),
			want: Decision{ClassTerminal, "context_canceled"},
		},
		"deadline is worth another try": {
			err:  fmt.Errorf("poll head: %w", context.DeadlineExceeded),
			want: Decision{ClassTransient, "context_deadline_exceeded"},
		},
		"net timeout": {
			err:  timeoutNetError{},
			want: Decision{ClassTransient, "net_timeout"},
		},
		"gateway 503": {
			err:  errors.New("events(100..105): http request: http status 503: upstream maintenance"),
			want: Decision{ClassTransient, "message_transient"},
		},
		"graphql schema mismatch": {
			err:  errors.New(`graphql: Cannot query field "events" on type "query"`),
			want: Decision{ClassTerminal, "message_terminal"},
		},
		"rate limited": {
			err:  errors.New("fetch submissions: Too Many Requests"),
			want: Decision{ClassTransient, "message_transient"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassify_TerminalRulesBeatTransientTokens(t *testing.T) {
	// "parse error ... timeout" matches both rule sets; terminal must win.
	d := Classify(errors.New("parse error while reading timeout config"))
	assert.Equal(t, ClassTerminal, d.Class)
}
