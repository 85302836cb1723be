package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"
	"go.uber.org/zap"

	"camscout/internal/domain"
)

// ErrNoPackets is returned when a stream plays but sends nothing in time
var ErrNoPackets = errors.New("no media received")

// Validator plays a stream until the first RTP packet arrives
type Validator struct {
	timeout   time.Duration
	transport string
	logger    *zap.Logger
}

// NewValidator creates a new validator. transport is "tcp" or "udp".
func NewValidator(timeout time.Duration, transport string, logger *zap.Logger) *Validator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{timeout: timeout, transport: transport, logger: logger.Named("validator")}
}

func (v *Validator) getTransport() *gortsplib.Transport {
	if v.transport == "udp" {
		transport := gortsplib.TransportUDP
		return &transport
	}
	transport := gortsplib.TransportTCP
	return &transport
}

// Validate returns nil when stream delivers media within the timeout
func (v *Validator) Validate(ctx context.Context, stream domain.Stream) error {
	u, err := base.ParseURL(stream.URL())
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	client := &gortsplib.Client{
		Transport:    v.getTransport(),
		ReadTimeout:  v.timeout,
		WriteTimeout: v.timeout,
	}
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	desc, _, err := client.Describe(u)
	if err != nil {
		return fmt.Errorf("failed to describe: %w", err)
	}
	if len(desc.Medias) == 0 {
		return fmt.Errorf("stream has no media")
	}

	if err := client.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		return fmt.Errorf("failed to setup: %w", err)
	}

	received := make(chan *rtp.Packet, 1)
	client.OnPacketRTPAny(func(medi *description.Media, forma format.Format, pkt *rtp.Packet) {
		select {
		case received <- pkt:
		default:
		}
	})

	if _, err := client.Play(nil); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	failed := make(chan error, 1)
	go func() { failed <- client.Wait() }()

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()

	select {
	case pkt := <-received:
		v.logger.Debug("Stream delivers media",
			zap.Stringer("stream", stream.Key()),
			zap.Uint8("payload_type", pkt.PayloadType),
			zap.Uint16("sequence", pkt.SequenceNumber),
		)
		return nil
	case err := <-failed:
		return fmt.Errorf("stream closed: %w", err)
	case <-timer.C:
		return ErrNoPackets
	case <-ctx.Done():
		return ctx.Err()
	}
}
