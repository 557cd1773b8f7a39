package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures the mDNS advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface. Empty means all.
	Interface string

	// TTL overrides the record TTL.
	TTL time.Duration
}

// Advertiser publishes the scheduler over mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
	info   ServiceInfo
}

// NewAdvertiser creates an mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config}
}

// getInterfaces returns the interfaces to advertise on. Nil means all.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising info, replacing any previous registration.
func (a *Advertiser) Advertise(info ServiceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}
	instance := info.InstanceName
	if instance == "" {
		instance = fmt.Sprintf("tagsched-%d", port)
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeTXT(&info)),
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	a.info = info
	return nil
}

// Update refreshes the TXT records of the running registration.
func (a *Advertiser) Update(info ServiceInfo) error {
	a.mu.Lock()
	running := a.server != nil
	a.mu.Unlock()

	if !running {
		return nil
	}
	return a.Advertise(info)
}

// Advertising reports whether a registration is active.
func (a *Advertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the registration.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
