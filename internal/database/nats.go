package database

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// ConnectNATS dials the realtime fan-out bus. The client keeps reconnecting in
// the background up to maxReconnects times.
func ConnectNATS(url string, maxReconnects int, reconnectWait time.Duration) (*nats.Conn, error) {
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	opts := []nats.Option{
		nats.Name("trailhub-backend"),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("disconnected from nats", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("reconnected to nats", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("nats connection closed")
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("connected to nats", "url", conn.ConnectedUrl())
	return conn, nil
}
