// Package net holds the shared HTTP plumbing: a pooled client and an
// oauth2-wrapped client for authenticated GitHub calls.
package net

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const clientTimeout = 30 * time.Second

// GetHTTPClient returns the shared unauthenticated HTTP client.
func GetHTTPClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}

// GetOAuthClient returns an HTTP client that injects the given GitHub
// token. An empty token yields a plain unauthenticated client, good for
// public-repo reads at the lower rate limit.
func GetOAuthClient(ctx context.Context, token string) *http.Client {
	if token == "" {
		return GetHTTPClient()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{
		TokenType:   "token",
		AccessToken: token,
	})
	return oauth2.NewClient(ctx, ts)
}
