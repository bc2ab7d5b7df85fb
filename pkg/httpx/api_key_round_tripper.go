package httpx

import (
	"fmt"
	"net/http"
)

const headerNameAPIKey = "X-Api-Key"

// APIKeyRoundTripper attaches a static API key header to every request.
type APIKeyRoundTripper struct {
	next   http.RoundTripper
	apiKey string
}

func NewAPIKeyRoundTripper(
	next http.RoundTripper,
	apiKey string,
) APIKeyRoundTripper {
	return APIKeyRoundTripper{
		next:   next,
		apiKey: apiKey,
	}
}

// RoundTrip implements http.RoundTripper interface.
func (rt APIKeyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(headerNameAPIKey, rt.apiKey)

	resp, err := rt.next.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("next.RoundTrip: %w", err)
	}

	return resp, nil
}
