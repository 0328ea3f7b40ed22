// Package ratelimit paces outgoing requests.
//
// RandomDelay inserts a uniformly random pause between consecutive page
// visits so that a crawl does not hammer the target site at a fixed rhythm.
// TokenBucket caps the absolute number of HTTP requests issued per period
// and is enabled with the rate_limit.requests_per_minute setting.
package ratelimit
