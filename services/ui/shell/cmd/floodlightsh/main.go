package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rmrobinson/floodlight/services/device/mock"
	"github.com/rmrobinson/floodlight/services/ui/panel"
	"github.com/rmrobinson/floodlight/services/ui/shell"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	endpointKey  = "endpoint"
	discoverKey  = "discover"
	mockDelayKey = "mock_delay"
	verboseKey   = "verbose"
)

func main() {
	pflag.String(endpointKey, "", "host:port of the state service; the built-in mock is used if unset and none is discovered")
	pflag.Duration(discoverKey, 0, "how long to look for a state service over SSDP")
	pflag.Duration(mockDelayKey, mock.DefaultDelay, "response delay of the built-in mock")
	pflag.Bool(verboseKey, false, "log debug messages")
	pflag.Parse()

	viper.SetEnvPrefix("NVS")
	viper.AutomaticEnv()
	viper.BindPFlags(pflag.CommandLine)

	sh, err := shell.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := zapcore.InfoLevel
	if viper.GetBool(verboseKey) {
		level = zapcore.DebugLevel
	}
	logger := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(sh.Stderr()),
		level,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, closeBackend, err := panel.OpenBackend(ctx, logger, panel.BackendConfig{
		Endpoint:         viper.GetString(endpointKey),
		DiscoveryTimeout: viper.GetDuration(discoverKey),
		MockDelay:        viper.GetDuration(mockDelayKey),
	})
	if err != nil {
		logger.Fatal("unable to open state service",
			zap.Error(err),
		)
	}
	defer closeBackend()

	ctrl := panel.NewController(logger, svc)
	defer ctrl.Close()

	out := sh.Stdout()
	ctrl.Subscribe(func(snap panel.Snapshot) {
		shell.PrintSnapshot(out, snap)
	})
	ctrl.Start(ctx)

	sh.Run(ctx, cancel, ctrl)
}
