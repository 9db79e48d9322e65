package cat

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/openx6100/catd/internal/bus"
	"github.com/openx6100/catd/internal/domain"
	"github.com/openx6100/catd/internal/transport"
)

// Service runs one CAT session: a dedicated goroutine reads frames from
// a transport and answers them in arrival order. Echo and reply are
// both written before the next read begins, so request/response pairs
// never interleave.
type Service struct {
	logger     *slog.Logger
	bus        bus.MessageBus
	transport  transport.Transport
	dispatcher *Dispatcher
	framer     *Framer
}

func NewService(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, d *Dispatcher, poll time.Duration) *Service {
	return &Service{
		logger:     logger,
		bus:        b,
		transport:  tr,
		dispatcher: d,
		framer:     NewFramer(tr, poll),
	}
}

// Start connects the transport and launches the protocol loop. A
// transport that cannot be opened disables this session for good; the
// caller keeps running without it.
func (s *Service) Start(ctx context.Context) error {
	s.publishLinkStatus(domain.LinkStateConnecting, nil)
	if err := s.transport.Connect(ctx); err != nil {
		s.publishLinkStatus(domain.LinkStateDisconnected, err)
		s.logger.Error("transport connect failed", "transport", s.transport.Name(), "error", err)
		return err
	}

	s.publishLinkStatus(domain.LinkStateConnected, nil)
	s.logger.Info("cat session started", "transport", s.transport.Name())
	go s.run(ctx)

	return nil
}

func (s *Service) run(ctx context.Context) {
	defer func() { _ = s.transport.Close() }()

	w := traceWriter{svc: s}
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := s.framer.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("frame read failed", "transport", s.transport.Name(), "error", err)
			s.publishLinkStatus(domain.LinkStateDisconnected, err)
			return
		}
		if len(raw) == 0 {
			s.logger.Debug("discarding oversized frame")
			continue
		}

		s.bus.Publish(bus.TopicRawFrameIn, rawFrameEvent(raw))
		s.dispatcher.Handle(ctx, w, raw)
	}
}

func (s *Service) publishLinkStatus(state domain.LinkState, err error) {
	status := domain.LinkStatus{
		State:         state,
		TransportName: s.transport.Name(),
		Timestamp:     time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	if resolver, ok := s.transport.(transport.StatusTargetResolver); ok {
		status.Target = resolver.StatusTarget()
	}
	s.bus.Publish(bus.TopicLinkStatus, status)
}

// traceWriter mirrors every outbound frame onto the bus before it hits
// the wire.
type traceWriter struct {
	svc *Service
}

func (w traceWriter) Write(ctx context.Context, buf []byte) error {
	w.svc.bus.Publish(bus.TopicRawFrameOut, rawFrameEvent(buf))
	return w.svc.transport.Write(ctx, buf)
}

func rawFrameEvent(buf []byte) domain.RawFrame {
	return domain.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(buf)), Len: len(buf)}
}
