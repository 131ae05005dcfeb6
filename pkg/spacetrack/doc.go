// Package spacetrack is a client for the Space-Track catalog service.
//
// A Client keeps one cookie session and sends every request through a
// ratelimit.Limiter, so several clients sharing a gate stay inside one
// request budget. Retries wrap the limiter: each attempt is admitted on
// its own.
//
// Example usage:
//
//	gate, _ := ratelimit.NewGate(30, time.Minute)
//	client, err := spacetrack.NewClient(spacetrack.Options{
//		Identity: "user@example.com",
//		Password: "secret",
//	}, gate, logger.GetLogger())
//	if err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	result, err := client.GP(ctx, query.New("").
//		Where("NORAD_CAT_ID", 25544).
//		OrderBy("EPOCH desc").
//		Limit(1))
//	if err != nil {
//		var apiErr *errors.Error
//		if stderrors.As(err, &apiErr) && apiErr.Type == errors.ErrorTypeAuth {
//			// check credentials
//		}
//		return err
//	}
//
//	rows, _ := result.Records()
package spacetrack
