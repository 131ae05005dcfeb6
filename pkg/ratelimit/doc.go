// Package ratelimit provides the sliding-window gate that every outbound
// catalog request passes through.
//
// A Gate admits at most MaxCalls guarded operations per sliding window of
// length Period. Callers either pair Acquire with Release or let Do, Wrap
// or Run do it for them:
//
//	gate, err := ratelimit.NewGate(30, time.Minute)
//	if err != nil {
//	    return err
//	}
//
//	body, err := ratelimit.Do(ctx, gate, func(ctx context.Context) ([]byte, error) {
//	    return fetch(ctx, path)
//	})
//
//	fetchGuarded := ratelimit.Wrap(gate, fetch)
//	body, err = fetchGuarded(ctx, path)
//
// Two bindings decide how waiting callers are suspended:
//
//   - Cooperative (default): the gate lock and the throttle wait both
//     return as soon as the context is done.
//   - Blocking: a mutex and a plain sleep. A cancelled caller notices
//     after the wait and backs out without being recorded.
//
// Ownership is held from Acquire until Release, so operations sharing a
// gate are serialised. The admission log only grows on Release.
package ratelimit
