package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rmrobinson/floodlight/services/device"
	"github.com/rmrobinson/floodlight/services/device/mock"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	idKey        = "id"
	portKey      = "port"
	fixtureKey   = "fixture"
	delayKey     = "delay"
	drainKey     = "drain"
	advertiseKey = "advertise"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	pflag.String(idKey, "", "id to advertise this service under; generated if empty")
	pflag.Int(portKey, 0, "port to listen on; chosen by the OS if 0")
	pflag.String(fixtureKey, "", "YAML file containing the initial device state")
	pflag.Duration(delayKey, mock.DefaultDelay, "delay before each state request is answered")
	pflag.String(drainKey, device.DefaultDrainSchedule, "cron schedule on which an hour of battery is drained")
	pflag.Bool(advertiseKey, true, "advertise this service over SSDP")
	pflag.Parse()

	viper.SetEnvPrefix("NVS")
	viper.AutomaticEnv()
	viper.BindPFlags(pflag.CommandLine)

	id := viper.GetString(idKey)
	if len(id) < 1 {
		id = uuid.New().String()
	}

	initial := mock.DefaultState()
	if path := viper.GetString(fixtureKey); len(path) > 0 {
		loaded, err := device.LoadStateFile(path)
		if err != nil {
			logger.Fatal("error loading fixture",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		initial = *loaded
	}

	connStr := fmt.Sprintf("%s:%d", "0.0.0.0", viper.GetInt(portKey))
	lis, err := net.Listen("tcp", connStr)
	if err != nil {
		logger.Fatal("error initializing listener",
			zap.Error(err),
		)
	}
	defer lis.Close()
	logger.Info("listening",
		zap.String("local_addr", lis.Addr().String()),
		zap.Stringer("initial_state", initial),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := device.NewSimulator(logger, initial, viper.GetDuration(delayKey))
	go func() {
		if err := sim.Run(ctx, viper.GetString(drainKey)); err != nil {
			logger.Fatal("error starting simulator",
				zap.Error(err),
			)
		}
	}()

	if viper.GetBool(advertiseKey) {
		ad := device.NewAdvertiser(logger, id, lis.Addr().String())
		go ad.Run()
		defer ad.Shutdown()
	}

	grpcServer := grpc.NewServer()
	device.RegisterStateServiceServer(grpcServer, device.NewStateServer(logger, sim))

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(lis); err != nil {
		logger.Error("error serving",
			zap.Error(err),
		)
	}
}
