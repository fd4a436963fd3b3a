package testutil

import (
	"context"
	"errors"
	"sync"
)

// Reply is one scripted completer outcome.
type Reply struct {
	Text string
	Err  error
}

// Call is one recorded completer invocation.
type Call struct {
	System string
	User   string
}

// ScriptedCompleter replays replies in order. Once the script is used up it
// keeps returning the last reply, or an error if the script is empty.
//
// Thread-safety: safe for concurrent use. Under concurrency the order in
// which callers receive replies is the order they acquire the lock.
type ScriptedCompleter struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// NewScriptedCompleter creates a completer that returns replies in order.
func NewScriptedCompleter(replies ...Reply) *ScriptedCompleter {
	return &ScriptedCompleter{replies: replies}
}

// Complete returns the next scripted reply.
func (c *ScriptedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{System: system, User: user})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(c.replies) == 0 {
		return "", errors.New("scripted completer: no replies")
	}
	r := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return r.Text, r.Err
}

// Calls returns every recorded invocation.
func (c *ScriptedCompleter) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CompleterFunc adapts a function to the completer interface.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
