package sink

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"telemetry-logger/utils"
)

// publisher is the part of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every record as one message on a subject so that
// pit-side consumers can follow the session live.
type NATSSink struct {
	pub     publisher
	conn    *nats.Conn
	subject string
	warn    *warnLimiter
}

// ConnectNATS dials url and returns a sink publishing on subject. The
// connection keeps reconnecting in the background; while disconnected,
// publishes are buffered by the client up to its reconnect buffer.
func ConnectNATS(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("telemetry-logger"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				utils.L().Warn("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			utils.L().Info("nats reconnected  url=%s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	s := newNATSSink(nc, subject)
	s.conn = nc
	return s, nil
}

func newNATSSink(pub publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subject, warn: newWarnLimiter()}
}

func (s *NATSSink) Name() string { return "nats" }

// Write publishes a copy of record. The client copies data into its own
// outbound buffer before Publish returns.
func (s *NATSSink) Write(record []byte) error {
	if err := s.pub.Publish(s.subject, record); err != nil {
		s.warn.warn("nats publish %s: %v", s.subject, err)
		return err
	}
	return nil
}

// Close flushes buffered messages and closes the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.FlushTimeout(time.Second); err != nil {
		utils.L().Warn("nats flush on close: %v", err)
	}
	s.conn.Close()
	return nil
}
