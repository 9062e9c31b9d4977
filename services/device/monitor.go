package device

import (
	"context"
	"strings"

	"github.com/koron/go-ssdp"
	"go.uber.org/zap"
)

// Monitor listens for state service advertisements.
type Monitor struct {
	logger *zap.Logger
}

// NewMonitor creates a new monitor
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		logger: logger,
	}
}

// Discover listens until a state service announces itself, returning its gRPC endpoint.
// It gives up when the context is done.
func (m *Monitor) Discover(ctx context.Context) (string, error) {
	found := make(chan string, 1)

	ssdpMonitor := ssdp.Monitor{
		Alive: func(msg *ssdp.AliveMessage) {
			endpoint, ok := m.match(msg.Type, msg.USN, msg.Location)
			if !ok {
				return
			}
			select {
			case found <- endpoint:
			default:
			}
		},
	}

	ssdpMonitor.Start()
	defer ssdpMonitor.Close()

	m.logger.Debug("listening for state service advertisements")

	select {
	case endpoint := <-found:
		return endpoint, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Monitor) match(msgType, usn, location string) (string, bool) {
	if msgType != AdvertisementType {
		return "", false
	}

	endpoint := LocationToEndpoint(location)
	m.logger.Debug("state service is alive",
		zap.String("usn", usn),
		zap.String("endpoint", endpoint),
	)
	return endpoint, true
}

// LocationToEndpoint converts an advertised location into a dialable host:port.
func LocationToEndpoint(location string) string {
	return strings.TrimPrefix(location, locationScheme)
}
