// Package batch runs a YAML file of named catalog queries on a small
// worker pool. The workers share one client, so the whole run stays inside
// the client's rate limit, and results already on disk are skipped.
package batch
