package main

import (
	"context"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rmrobinson/floodlight/services/device"
	"github.com/rmrobinson/floodlight/services/device/remote"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	endpointKey = "endpoint"
	discoverKey = "discover"
	timeoutKey  = "timeout"
	watchKey    = "watch"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	pflag.String(endpointKey, "", "host:port of the state service")
	pflag.Duration(discoverKey, 5*time.Second, "how long to look for a state service over SSDP if no endpoint is set")
	pflag.Duration(timeoutKey, 10*time.Second, "how long to wait for the state")
	pflag.Bool(watchKey, false, "keep printing the state as it changes")
	pflag.Parse()

	viper.SetEnvPrefix("NVS")
	viper.AutomaticEnv()
	viper.BindPFlags(pflag.CommandLine)

	endpoint := viper.GetString(endpointKey)
	if len(endpoint) < 1 {
		ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration(discoverKey))
		endpoint, err = device.NewMonitor(logger).Discover(ctx)
		cancel()
		if err != nil {
			logger.Fatal("no state service found",
				zap.Error(err),
			)
		}
	}

	var grpcOpts []grpc.DialOption
	grpcOpts = append(grpcOpts, grpc.WithInsecure())

	conn, err := grpc.Dial(endpoint, grpcOpts...)
	if err != nil {
		logger.Fatal("unable to dial state service",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}
	defer conn.Close()

	client := remote.NewClient(conn)

	if viper.GetBool(watchKey) {
		err := client.WatchDeviceState(context.Background(), func(s *device.State) {
			spew.Dump(s)
		})
		if err != nil {
			logger.Fatal("watch failed",
				zap.Error(err),
			)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration(timeoutKey))
	defer cancel()

	state, err := client.FetchDeviceState(ctx)
	if err != nil {
		logger.Fatal("unable to fetch device state",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}
	spew.Dump(state)
}
