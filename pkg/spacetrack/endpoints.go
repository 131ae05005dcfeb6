package spacetrack

import (
	"context"

	"spacetrack/pkg/query"
)

// on returns q pointed at entity, or a fresh query when q is nil. The
// caller's builder is cloned so it can be reused.
func on(entity string, q *query.Builder) *query.Builder {
	if q == nil {
		return query.New(entity)
	}
	return q.Clone().SetEntity(entity)
}

// TLE queries the historical two-line element sets.
func (c *Client) TLE(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityTLE, q))
}

// TLELatest queries the most recent element sets per object.
func (c *Client) TLELatest(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityTLELatest, q))
}

// TLEPublish queries element sets by publication time.
func (c *Client) TLEPublish(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityTLEPublish, q))
}

// OMM queries orbit mean-elements messages.
func (c *Client) OMM(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityOMM, q))
}

// BoxScore queries the per-country object summary.
func (c *Client) BoxScore(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityBoxScore, q))
}

// SatCat queries the satellite catalog.
func (c *Client) SatCat(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntitySatCat, q))
}

// LaunchSite queries the launch site list.
func (c *Client) LaunchSite(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityLaunchSite, q))
}

// SatCatChange queries recent catalog changes.
func (c *Client) SatCatChange(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntitySatCatChange, q))
}

// SatCatDebut queries newly cataloged objects.
func (c *Client) SatCatDebut(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntitySatCatDebut, q))
}

// Decay queries reentry records.
func (c *Client) Decay(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityDecay, q))
}

// TIP queries tracking and impact predictions.
func (c *Client) TIP(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityTIP, q))
}

// GP queries the current general perturbations catalog.
func (c *Client) GP(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityGP, q))
}

// GPHistory queries past general perturbations records.
func (c *Client) GPHistory(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityGPHistory, q))
}

// CDMPublic queries public conjunction data messages.
func (c *Client) CDMPublic(ctx context.Context, q *query.Builder) (*Result, error) {
	return c.Query(ctx, on(query.EntityCDMPublic, q))
}

// QueryInto runs q as json and decodes the rows into T.
func QueryInto[T any](ctx context.Context, c *Client, q *query.Builder) ([]T, error) {
	q = q.Clone().Format(query.FormatJSON)
	result, err := c.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := result.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
