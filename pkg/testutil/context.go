package testutil

import "net/http"

// WithBearer sets the Authorization header for a token-authenticated request.
// An empty token leaves the request anonymous.
func WithBearer(req *http.Request, token string) *http.Request {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
