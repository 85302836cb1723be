package probe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/liberrors"
	"go.uber.org/zap"
)

// clientLifecycle serializes client start and teardown across the process.
// Probes themselves run unlocked.
var clientLifecycle sync.Mutex

// RTSPProber probes cameras with an OPTIONS then DESCRIBE exchange
type RTSPProber struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewRTSPProber creates a prober with the given per-request timeout
func NewRTSPProber(timeout time.Duration, logger *zap.Logger) *RTSPProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RTSPProber{timeout: timeout, logger: logger.Named("probe")}
}

// Probe runs one handshake. A cancelled ctx is reported as unreachable
// without touching the network; an in-flight exchange is bounded by the
// read/write timeout only.
func (p *RTSPProber) Probe(ctx context.Context, req Request) Outcome {
	if ctx.Err() != nil {
		return Unreachable
	}

	rawURL := req.URL()
	u, err := base.ParseURL(rawURL)
	if err != nil {
		p.logger.Debug("Invalid probe URL", zap.String("url", rawURL), zap.Error(err))
		return Unreachable
	}

	transport := gortsplib.TransportTCP
	client := &gortsplib.Client{
		Transport:    &transport,
		ReadTimeout:  p.timeout,
		WriteTimeout: p.timeout,
	}

	clientLifecycle.Lock()
	err = client.Start(u.Scheme, u.Host)
	clientLifecycle.Unlock()
	if err != nil {
		p.logger.Debug("Connection failed", zap.String("host", u.Host), zap.Error(err))
		return Unreachable
	}
	defer func() {
		clientLifecycle.Lock()
		client.Close()
		clientLifecycle.Unlock()
	}()

	// Some cameras reject OPTIONS without credentials; only a transport
	// failure here is fatal.
	if _, err := client.Options(u); err != nil {
		if _, ok := statusCode(err); !ok {
			p.logger.Debug("OPTIONS failed", zap.String("host", u.Host), zap.Error(err))
			return Unreachable
		}
	}

	var code base.StatusCode
	_, res, err := client.Describe(u)
	switch {
	case err == nil && res != nil:
		code = res.StatusCode
	case err != nil:
		c, ok := statusCode(err)
		if !ok {
			p.logger.Debug("DESCRIBE failed", zap.String("host", u.Host), zap.Error(err))
			return Unreachable
		}
		code = c
	default:
		return Unreachable
	}

	outcome := Interpret(req, code)
	p.logger.Debug("DESCRIBE",
		zap.String("host", u.Host),
		zap.String("path", u.Path),
		zap.String("kind", req.Kind.String()),
		zap.Int("status", int(code)),
		zap.Stringer("outcome", outcome),
	)
	return outcome
}

// Interpret maps an RTSP status code to an outcome for the request kind.
//
// Credentials: anything but 401/403 means the camera accepted them.
// Route with credentials: only 200 confirms the route.
// Route without credentials: 200, 401 and 403 all prove the route exists.
func Interpret(req Request, code base.StatusCode) Outcome {
	switch req.Kind {
	case KindRoute:
		if code == base.StatusOK {
			return Authorized
		}
		if req.Username == "" && req.Password == "" &&
			(code == base.StatusUnauthorized || code == base.StatusForbidden) {
			return Authorized
		}
		return Unauthorized
	default:
		if code == base.StatusUnauthorized || code == base.StatusForbidden {
			return Unauthorized
		}
		return Authorized
	}
}

func statusCode(err error) (base.StatusCode, bool) {
	var badStatus liberrors.ErrClientBadStatusCode
	if errors.As(err, &badStatus) {
		return badStatus.Code, true
	}
	return 0, false
}
