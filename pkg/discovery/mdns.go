package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising the device. The instance name is the
// device id.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *PeerInfo) error {
	if err := ValidateInstanceName(info.DeviceID); err != nil {
		return err
	}
	txt := TXTRecordsToStrings(EncodePeerTXT(info))
	if err := ValidateTXTSize(txt); err != nil {
		return err
	}

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

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.DeviceID,
		ServiceType,
		Domain,
		port,
		txt,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	return nil
}

// Update replaces the TXT records of the running advertisement.
func (a *MDNSAdvertiser) Update(info *PeerInfo) error {
	txt := TXTRecordsToStrings(EncodePeerTXT(info))
	if err := ValidateTXTSize(txt); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(txt)
	return nil
}

// Stop stops advertising.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	stopped bool
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// Browse searches for pairtimer devices.
// Services are aggregated by instance name - addresses from multiple interfaces
// are combined into a single entry.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *PeerService, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, context.Canceled
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	out := make(chan *PeerService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	seen := make(chan sighting)
	gone := make(chan sighting)
	go forward(ctx, entries, seen)
	go forward(ctx, removed, gone)
	go aggregate(ctx, seen, gone, out)

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// FindPeer returns the first device with the given role other than selfID.
func (b *MDNSBrowser) FindPeer(ctx context.Context, role, selfID string) (*PeerService, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	return firstPeer(ctx, results, role, selfID)
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// sighting is one zeroconf answer reduced to the fields discovery uses.
type sighting struct {
	instance string
	host     string
	port     int
	text     []string
	addrs    []string
}

func fromEntry(entry *zeroconf.ServiceEntry) sighting {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return sighting{
		instance: entry.Instance,
		host:     entry.HostName,
		port:     entry.Port,
		text:     entry.Text,
		addrs:    addrs,
	}
}

func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- sighting) {
	defer close(out)
	for {
		select {
		case entry, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- fromEntry(entry):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// toPeer converts a sighting to a PeerService. Sightings with invalid TXT
// records are skipped.
func (s sighting) toPeer() *PeerService {
	info, err := DecodePeerTXT(StringsToTXTRecords(s.text))
	if err != nil {
		return nil
	}
	return &PeerService{
		InstanceName: s.instance,
		Host:         s.host,
		Port:         uint16(s.port),
		Addresses:    s.addrs,
		DeviceID:     info.DeviceID,
		Role:         info.Role,
		DeviceName:   info.DeviceName,
		NATSURL:      info.NATSURL,
	}
}

// aggregate emits each instance once and tracks its addresses until it
// disappears. out is closed when ctx is done or seen is closed.
func aggregate(ctx context.Context, seen, gone <-chan sighting, out chan<- *PeerService) {
	defer close(out)

	services := make(map[string]*PeerService)
	for {
		select {
		case s, ok := <-seen:
			if !ok {
				return
			}
			svc := s.toPeer()
			if svc == nil {
				continue
			}

			existing, found := services[svc.InstanceName]
			if found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			select {
			case out <- clonePeer(svc):
			case <-ctx.Done():
				return
			}

		case s, ok := <-gone:
			if !ok {
				gone = nil
				continue
			}
			if existing, found := services[s.instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, s.addrs)
				if len(existing.Addresses) == 0 {
					delete(services, s.instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func firstPeer(ctx context.Context, results <-chan *PeerService, role, selfID string) (*PeerService, error) {
	for {
		select {
		case svc, ok := <-results:
			if !ok {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("%w: no %s peer: %w", ErrNotFound, role, ctx.Err())
				}
				return nil, ErrNotFound
			}
			if svc.DeviceID == selfID || (role != "" && svc.Role != role) {
				continue
			}
			return svc, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: no %s peer: %w", ErrNotFound, role, ctx.Err())
		}
	}
}

func clonePeer(s *PeerService) *PeerService {
	c := *s
	c.Addresses = append([]string(nil), s.Addresses...)
	return &c
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the given addresses from the list.
func removeAddresses(addresses, removed []string) []string {
	toRemove := make(map[string]bool, len(removed))
	for _, addr := range removed {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
