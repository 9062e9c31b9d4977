package main

import (
	"context"

	"github.com/rivo/tview"
	"github.com/rmrobinson/floodlight/services/device/mock"
	"github.com/rmrobinson/floodlight/services/ui/panel"
	"github.com/rmrobinson/floodlight/services/ui/tboard/widget"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	endpointKey  = "endpoint"
	discoverKey  = "discover"
	mockDelayKey = "mock_delay"
	nameKey      = "name"
	logLevelKey  = "log_level"
)

func main() {
	pflag.String(endpointKey, "", "host:port of the state service; the built-in mock is used if unset and none is discovered")
	pflag.Duration(discoverKey, 0, "how long to look for a state service over SSDP")
	pflag.Duration(mockDelayKey, mock.DefaultDelay, "response delay of the built-in mock")
	pflag.String(nameKey, "THR 08", "name shown on the panel")
	pflag.String(logLevelKey, "info", "minimum level of log messages shown")
	pflag.Parse()

	viper.SetEnvPrefix("NVS")
	viper.AutomaticEnv()
	viper.BindPFlags(pflag.CommandLine)

	app := tview.NewApplication()
	logView := widget.NewLogView(app)

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(viper.GetString(logLevelKey))); err != nil {
		level = zapcore.InfoLevel
	}
	logger := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		NewWidgetSink(logView),
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
		panic(err)
	}
	defer closeBackend()

	ctrl := panel.NewController(logger, svc)
	defer ctrl.Close()

	floodlightView := widget.NewFloodlight(app, viper.GetString(nameKey), ctrl)
	go floodlightView.Run(ctrl.Watch())

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(floodlightView, 11, 1, true).
		AddItem(logView, 0, 1, false)

	ctrl.Start(ctx)

	if err := app.SetRoot(layout, true).SetFocus(floodlightView).Run(); err != nil {
		panic(err)
	}
}
