// Package retry retries catalog requests that fail for transient reasons.
//
// Delays come from a BackoffStrategy (exponential, linear or constant, with
// optional jitter). When ByErrorType is set, the typed error returned by
// the client selects the strategy, so upstream 429s back off longer than
// connection resets.
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//	    return fetch(ctx)
//	}, cfg)
//
// Waits between attempts return early when the context is done.
package retry
