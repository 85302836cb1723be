// Package probe performs single RTSP handshakes against a camera and
// reduces the answer to authorized, unauthorized or unreachable.
package probe

import (
	"context"

	"camscout/internal/domain"
)

// Outcome is the result of one probe
type Outcome int

const (
	// Unreachable covers timeouts, refused connections and protocol errors
	Unreachable Outcome = iota
	// Unauthorized means the camera answered but rejected credentials or route
	Unauthorized
	// Authorized means the camera accepted the attempt
	Authorized
)

func (o Outcome) String() string {
	switch o {
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unreachable"
	}
}

// Kind selects how the camera's answer is interpreted
type Kind int

const (
	// KindCredentials succeeds when the camera stops asking for authentication
	KindCredentials Kind = iota
	// KindRoute succeeds when the camera serves the requested route
	KindRoute
)

func (k Kind) String() string {
	if k == KindRoute {
		return "route"
	}
	return "credentials"
}

// Request describes one attempt against a stream
type Request struct {
	Stream   domain.Stream
	Username string
	Password string
	Route    string
	Kind     Kind
}

// URL returns the rtsp:// address the request targets
func (r Request) URL() string {
	return r.Stream.URLFor(r.Username, r.Password, r.Route)
}

// Prober issues probes
type Prober interface {
	Probe(ctx context.Context, req Request) Outcome
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context, req Request) Outcome

// Probe calls f
func (f ProberFunc) Probe(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}
