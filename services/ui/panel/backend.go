package panel

import (
	"context"
	"fmt"
	"time"

	"github.com/rmrobinson/floodlight/services/device"
	"github.com/rmrobinson/floodlight/services/device/mock"
	"github.com/rmrobinson/floodlight/services/device/remote"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// BackendConfig selects where the panel gets its state from.
type BackendConfig struct {
	// Endpoint is the host:port of a state service daemon. Takes precedence over discovery.
	Endpoint string
	// DiscoveryTimeout, if positive, allows looking for a daemon over SSDP for this long.
	DiscoveryTimeout time.Duration
	// MockDelay is the delay of the in-process mock used when no daemon is configured or found.
	MockDelay time.Duration
}

// OpenBackend returns the state service described by the config, along with a function releasing its resources.
// Without a configured or discovered daemon the in-process mock is used.
func OpenBackend(ctx context.Context, logger *zap.Logger, cfg BackendConfig) (device.StateService, func(), error) {
	endpoint := cfg.Endpoint

	if len(endpoint) < 1 && cfg.DiscoveryTimeout > 0 {
		discoverCtx, cancel := context.WithTimeout(ctx, cfg.DiscoveryTimeout)
		found, err := device.NewMonitor(logger).Discover(discoverCtx)
		cancel()

		if err != nil {
			logger.Info("no state service discovered",
				zap.Duration("timeout", cfg.DiscoveryTimeout),
				zap.Error(err),
			)
		} else {
			endpoint = found
		}
	}

	if len(endpoint) < 1 {
		logger.Info("using mock state service",
			zap.Duration("delay", cfg.MockDelay),
		)
		return mock.NewStateService(mock.WithDelay(cfg.MockDelay)), func() {}, nil
	}

	var grpcOpts []grpc.DialOption
	grpcOpts = append(grpcOpts, grpc.WithInsecure())

	conn, err := grpc.DialContext(ctx, endpoint, grpcOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing state service %s: %w", endpoint, err)
	}

	logger.Info("using remote state service",
		zap.String("endpoint", endpoint),
	)
	return remote.NewClient(conn), func() { conn.Close() }, nil
}
