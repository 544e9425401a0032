// Package ratelimit provides token bucket rate limiting for proxy traffic,
// keyed per client and usable both as request-admission control in the HTTP
// layer and as output throttling inside streaming policies.
package ratelimit
