package agent

import (
	"context"

	"github.com/andywolf/taskrunner/internal/task"
)

// Mock is a scriptable Provider for tests: each call to Execute pops the
// next queued result/error pair, so a test can drive exactly the sequence
// of outcomes a scenario calls for (e.g. a rate-limit error on call #1,
// success on call #2).
type Mock struct {
	name    string
	Results []MockCall
	calls   int
}

// MockCall is one scripted outcome.
type MockCall struct {
	Result *task.AgentResult
	Err    error
}

// NewMock builds a Mock provider named name with the given scripted calls,
// consumed in order.
func NewMock(name string, calls ...MockCall) *Mock {
	return &Mock{name: name, Results: calls}
}

func (m *Mock) Name() string { return m.name }

// Calls returns how many times Execute has been invoked so far.
func (m *Mock) Calls() int { return m.calls }

func (m *Mock) Execute(ctx context.Context, req Request, onMessage MessageCallback) (*task.AgentResult, error) {
	if m.calls >= len(m.Results) {
		// Once scripted calls are exhausted, repeat the last one so a loop
		// that calls more times than scripted doesn't panic; tests that
		// care about exact call counts assert on Calls().
		last := m.Results[len(m.Results)-1]
		m.calls++
		return replay(last, onMessage)
	}
	call := m.Results[m.calls]
	m.calls++
	return replay(call, onMessage)
}

func replay(call MockCall, onMessage MessageCallback) (*task.AgentResult, error) {
	if call.Err != nil {
		return nil, call.Err
	}
	if onMessage != nil {
		for _, msg := range call.Result.Messages {
			onMessage(msg)
		}
	}
	return call.Result, nil
}

func (m *Mock) Stream(ctx context.Context, req Request) (<-chan task.AgentMessage, <-chan error) {
	msgCh := make(chan task.AgentMessage)
	errCh := make(chan error, 1)

	go func() {
		defer close(msgCh)
		result, err := m.Execute(ctx, req, nil)
		if err != nil {
			errCh <- err
			return
		}
		for _, msg := range result.Messages {
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return msgCh, errCh
}
