package ratelimit

import "context"

// Do runs op between Acquire and Release. Release is deferred, so it runs
// when op returns a value, returns an error or panics. op's result and
// error are passed through untouched.
func Do[T any](ctx context.Context, l Limiter, op func(context.Context) (T, error)) (T, error) {
	if err := l.Acquire(ctx); err != nil {
		var zero T
		return zero, err
	}
	defer l.Release()

	return op(ctx)
}

// Wrap returns op guarded by l.
func Wrap[A, T any](l Limiter, op func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		return Do(ctx, l, func(ctx context.Context) (T, error) {
			return op(ctx, arg)
		})
	}
}

// Run is Do for operations that only return an error.
func (g *Gate) Run(ctx context.Context, op func(context.Context) error) error {
	_, err := Do(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
