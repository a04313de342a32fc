package agent

import (
	"context"
	"sync"
	"time"
)

// Dialer fans an order out over a pool of executors, first acceptance wins.
type Dialer struct {
	agent   *Agent
	limiter LineLimiter

	// answerTimeout bounds how long a single call may stay without a
	// terminal result before it is written off as no_answer.
	answerTimeout time.Duration
}

// DialAttempt is the per-executor outcome of an order dispatch.
type DialAttempt struct {
	ExecutorID string     `json:"executor_id"`
	SessionID  string     `json:"session_id,omitempty"`
	Result     CallResult `json:"result,omitempty"`
	Skipped    bool       `json:"skipped,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// DispatchReport summarizes one CallExecutorsForOrder run.
type DispatchReport struct {
	OrderID            string        `json:"order_id"`
	AcceptedExecutorID string        `json:"accepted_executor_id,omitempty"`
	AcceptedSessionID  string        `json:"accepted_session_id,omitempty"`
	Attempts           []DialAttempt `json:"attempts"`
}

func (r DispatchReport) Accepted() bool { return r.AcceptedExecutorID != "" }

func NewDialer(agent *Agent, limiter LineLimiter, answerTimeout time.Duration) *Dialer {
	if limiter == nil {
		limiter = NewMemoryLimiter(1)
	}
	if answerTimeout <= 0 {
		answerTimeout = 2 * time.Minute
	}
	return &Dialer{agent: agent, limiter: limiter, answerTimeout: answerTimeout}
}

// CallExecutorsForOrder calls executors about the order until one accepts or
// the pool is exhausted. Executors are dialed in the order given, which is
// the caller's priority; unavailable executors and executors missing a
// required skill are skipped. Calls run concurrently up to the line cap; the
// first acceptance stops new calls and winds down the in-flight ones.
func (d *Dialer) CallExecutorsForOrder(ctx context.Context, executors []Executor, order Order) DispatchReport {
	report := DispatchReport{OrderID: order.ID}

	dispatchCtx, stopDialing := context.WithCancel(ctx)
	defer stopDialing()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(att DialAttempt) {
		mu.Lock()
		defer mu.Unlock()
		report.Attempts = append(report.Attempts, att)
		if att.Result == ResultAccepted && report.AcceptedExecutorID == "" {
			report.AcceptedExecutorID = att.ExecutorID
			report.AcceptedSessionID = att.SessionID
			stopDialing()
		}
	}

	for _, executor := range executors {
		if dispatchCtx.Err() != nil {
			break
		}
		if !executor.Available || !executor.HasSkills(order.RequiredSkills) {
			record(DialAttempt{ExecutorID: executor.ID, Skipped: true})
			continue
		}

		ok, err := d.acquireLine(dispatchCtx)
		if err != nil {
			if dispatchCtx.Err() != nil {
				break
			}
			record(DialAttempt{ExecutorID: executor.ID, Error: err.Error()})
			continue
		}
		if !ok {
			// All lines stayed busy for the whole answer window.
			record(DialAttempt{ExecutorID: executor.ID, Skipped: true})
			continue
		}
		if dispatchCtx.Err() != nil {
			// Acceptance landed while we were acquiring the line.
			_ = d.limiter.Release(context.WithoutCancel(ctx))
			break
		}

		wg.Add(1)
		go func(executor Executor) {
			defer wg.Done()
			defer func() { _ = d.limiter.Release(context.WithoutCancel(ctx)) }()
			record(d.dialOne(dispatchCtx, executor, order))
		}(executor)
	}

	wg.Wait()
	return report
}

// acquireLine polls the limiter until a line frees up, the answer window
// elapses, or the dispatch is stopped.
func (d *Dialer) acquireLine(ctx context.Context) (bool, error) {
	deadline := time.Now().Add(d.answerTimeout)
	for {
		ok, err := d.limiter.Acquire(ctx)
		if err != nil || ok {
			return ok, err
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// dialOne places one call and waits for its terminal result. A call that
// does not finish within the answer window, or is cut short because another
// executor accepted, is abandoned as no_answer.
func (d *Dialer) dialOne(ctx context.Context, executor Executor, order Order) DialAttempt {
	att := DialAttempt{ExecutorID: executor.ID}

	snap, err := d.agent.CallExecutor(ctx, executor, order)
	if err != nil {
		att.Error = err.Error()
		return att
	}
	att.SessionID = snap.ID

	waitCtx, cancel := context.WithTimeout(ctx, d.answerTimeout)
	defer cancel()

	final, err := d.agent.WaitForResult(waitCtx, snap.ID)
	if err != nil {
		final, err = d.agent.AbandonSession(snap.ID, ResultNoAnswer)
		if err != nil {
			att.Error = err.Error()
			return att
		}
	}
	att.Result = final.Result
	return att
}
