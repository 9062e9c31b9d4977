package device

import (
	"fmt"
	"net"
	"time"

	"github.com/koron/go-ssdp"
	"go.uber.org/zap"
)

const (
	advertiseInterval = time.Second * 10
	// AdvertisementType is the SSDP search target used to announce state services.
	AdvertisementType = "floodlight:state-service"
	maxAgeHeader      = 1800
	serverHeader      = "Floodlight SSDP/0.1"
	locationScheme    = "grpc://"
)

// Advertiser announces a state service endpoint over SSDP.
// If the 'any' IP is supplied the first global unicast IP of the host will be advertised instead.
// When advertisements should be sent, call Run(); when shutting down simply call Shutdown().
type Advertiser struct {
	logger *zap.Logger

	id      string
	connStr string

	done chan bool
}

// NewAdvertiser sets up a new advertiser.
// ID will have the 'uuid' prefix added before broadcasting.
// connStr must be a <host>:<port> formatted string.
func NewAdvertiser(logger *zap.Logger, id string, connStr string) *Advertiser {
	return &Advertiser{
		logger:  logger,
		id:      id,
		connStr: connStr,
		done:    make(chan bool),
	}
}

// Run begins the advertisement loop. Execute in a goroutine; it returns once Shutdown is called.
func (a *Advertiser) Run() {
	location, err := advertisedLocation(a.connStr)
	if err != nil {
		a.logger.Error("unable to determine advertised location",
			zap.String("conn_str", a.connStr),
			zap.Error(err),
		)
		return
	}

	usn := fmt.Sprintf("uuid:%s", a.id)
	ad, err := ssdp.Advertise(AdvertisementType, usn, location, serverHeader, maxAgeHeader)
	if err != nil {
		a.logger.Error("unable to create advertiser",
			zap.Error(err),
		)
		return
	}
	defer ad.Close()

	aliveTick := time.NewTicker(advertiseInterval)
	defer aliveTick.Stop()

	a.logger.Info("advertising service over ssdp",
		zap.String("usn", usn),
		zap.String("location", location),
	)

	for {
		select {
		case <-a.done:
			ad.Bye()
			return
		case <-aliveTick.C:
			ad.Alive()
		}
	}
}

// Shutdown stops a running advertiser.
func (a *Advertiser) Shutdown() {
	a.done <- true
}

func advertisedLocation(connStr string) (string, error) {
	connHost, connPort, err := net.SplitHostPort(connStr)
	if err != nil {
		return "", err
	}

	connIP := net.ParseIP(connHost)
	if connIP == nil {
		return "", fmt.Errorf("host %q is not an IP", connHost)
	}

	locationAddr := connHost
	if connIP.IsUnspecified() {
		addrs, err := net.InterfaceAddrs()
		if err != nil {
			return "", err
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				if ipnet.IP.IsLoopback() {
					continue
				}

				if ipnet.IP.IsGlobalUnicast() {
					locationAddr = ipnet.IP.String()
					break
				}
			}
		}
	}

	return locationScheme + net.JoinHostPort(locationAddr, connPort), nil
}
