package scrape

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// rotatingTransport applies a rotated header set to every outbound
// request before delegating to the wrapped RoundTripper.
type rotatingTransport struct {
	rotator *HeaderRotator
	base    http.RoundTripper
}

func (t *rotatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	t.rotator.Apply(clone)
	return t.base.RoundTrip(clone)
}

// NewHTTPClient builds the client adapters use for plain-HTTP
// storefronts: header rotation innermost, OTel tracing outermost.
func NewHTTPClient(rotator *HeaderRotator, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var rt http.RoundTripper = http.DefaultTransport
	if rotator != nil {
		rt = &rotatingTransport{rotator: rotator, base: rt}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(rt),
	}
}
