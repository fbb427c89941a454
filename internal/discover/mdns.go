package discover

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/pkg/models"
)

// mdnsServices lists the service types worth querying on an equipment LAN.
var mdnsServices = []string{
	"_ipp._tcp",
	"_printer._tcp",
	"_pdl-datastream._tcp",
	"_http._tcp",
	"_ssh._tcp",
	"_workstation._tcp",
}

// MDNSListener passively supplements the sweep with devices that announce
// themselves over mDNS. It writes to the same inventory and nothing else.
type MDNSListener struct {
	inventory *Inventory
	logger    *zap.Logger
	interval  time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMDNSListener(inventory *Inventory, logger *zap.Logger, interval time.Duration) *MDNSListener {
	return &MDNSListener{
		inventory: inventory,
		logger:    logger,
		interval:  interval,
		seen:      make(map[string]time.Time),
	}
}

// Run queries the service list immediately and then on a ticker until ctx
// is cancelled.
func (l *MDNSListener) Run(ctx context.Context) {
	l.logger.Info("mdns listener started", zap.Duration("interval", l.interval))

	l.queryAll(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("mdns listener stopped")
			return
		case <-ticker.C:
			l.queryAll(ctx)
		}
	}
}

func (l *MDNSListener) queryAll(ctx context.Context) {
	for _, svc := range mdnsServices {
		if ctx.Err() != nil {
			return
		}
		l.queryService(svc)
	}
}

func (l *MDNSListener) queryService(service string) {
	entries := make(chan *mdns.ServiceEntry, 16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			l.processEntry(entry, service)
		}
	}()

	params := mdns.DefaultParams(service)
	params.Timeout = 3 * time.Second
	params.Entries = entries
	params.DisableIPv6 = true

	if err := mdns.Query(params); err != nil {
		l.logger.Debug("mdns query failed",
			zap.String("service", service),
			zap.Error(err),
		)
	}
	close(entries)
	wg.Wait()
}

func (l *MDNSListener) processEntry(entry *mdns.ServiceEntry, service string) {
	if entry == nil || entry.AddrV4 == nil || entry.AddrV4.IsUnspecified() {
		return
	}
	ip := entry.AddrV4.String()

	if l.recentlySeen(ip) {
		return
	}
	l.markSeen(ip)

	hostname := strings.TrimSuffix(entry.Host, ".")
	if hostname == "" {
		hostname = entry.Name
	}

	l.inventory.Upsert(Device{
		IP:           ip,
		Hostname:     hostname,
		Type:         typeFromService(service),
		Method:       "mdns",
		DiscoveredAt: time.Now().UTC(),
	})

	l.logger.Debug("mdns device discovered",
		zap.String("ip", ip),
		zap.String("service", service),
	)
}

// typeFromService derives a weak type hint from the announced service.
func typeFromService(service string) models.DeviceType {
	switch service {
	case "_ipp._tcp", "_printer._tcp", "_pdl-datastream._tcp":
		return models.DeviceTypePrinter
	case "_workstation._tcp":
		return models.DeviceTypeServer
	default:
		return models.DeviceTypeUnknown
	}
}

func (l *MDNSListener) recentlySeen(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.seen[ip]
	return ok && time.Since(last) < l.interval
}

func (l *MDNSListener) markSeen(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[ip] = time.Now()
}
