package discover

import (
	"context"
	"fmt"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/HerbHall/netsentry/internal/config"
	"github.com/HerbHall/netsentry/internal/profile"
	"github.com/HerbHall/netsentry/pkg/models"
)

// maxSweepHosts guards against sweeping a prefix wider than a /16.
const maxSweepHosts = 65534

// pingFunc probes one host; live reports reachability, rtt the best
// round-trip. Injectable for tests.
type pingFunc func(ctx context.Context, ip string, timeout time.Duration) (live bool, rtt time.Duration)

// fingerprintFunc fetches sysDescr, sysObjectID, and sysName. Injectable
// for tests.
type fingerprintFunc func(ctx context.Context, ip, community string) (descr, objectID, name string, err error)

// Sweeper runs bounded-concurrency ping sweeps with SNMP fingerprinting.
type Sweeper struct {
	cfg         config.DiscoveryConfig
	inventory   *Inventory
	logger      *zap.Logger
	ping        pingFunc
	fingerprint fingerprintFunc
}

// NewSweeper creates a sweeper writing into inventory.
func NewSweeper(cfg config.DiscoveryConfig, inventory *Inventory, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cfg:         cfg,
		inventory:   inventory,
		logger:      logger,
		ping:        icmpPing,
		fingerprint: snmpFingerprint,
	}
}

// Sweep probes every host in the configured CIDR. Concurrency is bounded by
// the errgroup limit and probe starts by the rate limiter.
func (s *Sweeper) Sweep(ctx context.Context) error {
	hosts, err := expandCIDR(s.cfg.CIDR)
	if err != nil {
		return err
	}

	s.logger.Info("discovery sweep starting",
		zap.String("cidr", s.cfg.CIDR),
		zap.Int("hosts", len(hosts)),
		zap.Int("concurrency", s.cfg.Concurrency),
	)
	started := time.Now()

	limiter := rate.NewLimiter(rate.Limit(s.cfg.ProbeRate), s.cfg.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, ip := range hosts {
		ip := ip
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return nil // cancelled: stop quietly
			}
			s.probeHost(gctx, ip)
			return nil
		})
	}
	g.Wait()

	s.logger.Info("discovery sweep complete",
		zap.Int("devices", s.inventory.Len()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// probeHost pings one address and fingerprints it when alive.
func (s *Sweeper) probeHost(ctx context.Context, ip string) {
	live, rtt := s.ping(ctx, ip, s.cfg.PingTimeout)
	if !live {
		return
	}

	dev := Device{
		IP:           ip,
		Type:         models.DeviceTypeUnknown,
		Method:       "icmp",
		RTT:          rtt,
		DiscoveredAt: time.Now().UTC(),
	}

	descr, objectID, name, err := s.fingerprint(ctx, ip, s.cfg.Community)
	if err == nil {
		dev.SysDescr = descr
		dev.SysObjectID = objectID
		dev.Hostname = name
		dev.Type = Classify(descr, objectID)
		dev.Method = "icmp+snmp"
	} else {
		s.logger.Debug("snmp fingerprint failed",
			zap.String("ip", ip),
			zap.Error(err),
		)
	}

	s.inventory.Upsert(dev)
	s.logger.Debug("host discovered",
		zap.String("ip", ip),
		zap.String("type", string(dev.Type)),
	)
}

// icmpPing probes with a single echo request, cancellable via ctx.
func icmpPing(ctx context.Context, ip string, timeout time.Duration) (bool, time.Duration) {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return false, 0
	}
	pinger.Count = 1
	pinger.Timeout = timeout

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			return false, 0
		}
		st := pinger.Statistics()
		return st.PacketsRecv > 0, st.AvgRtt
	case <-ctx.Done():
		pinger.Stop()
		return false, 0
	}
}

// snmpFingerprint issues the three identification GETs with a short
// v2c-only client; a sweep has no per-device credentials.
func snmpFingerprint(ctx context.Context, ip, community string) (descr, objectID, name string, err error) {
	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   2 * time.Second,
		Retries:   0,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return "", "", "", fmt.Errorf("snmp connect %s: %w", ip, err)
	}
	defer client.Conn.Close()

	const oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	result, err := client.Get([]string{profile.OIDSysDescr, oidSysObjectID, profile.OIDSysName})
	if err != nil {
		return "", "", "", fmt.Errorf("snmp fingerprint %s: %w", ip, err)
	}

	for _, vb := range result.Variables {
		val := ""
		switch v := vb.Value.(type) {
		case string:
			val = v
		case []byte:
			val = string(v)
		}
		switch {
		case oidsEqual(vb.Name, profile.OIDSysDescr):
			descr = val
		case oidsEqual(vb.Name, oidSysObjectID):
			objectID = trimLeadingDot(val)
		case oidsEqual(vb.Name, profile.OIDSysName):
			name = val
		}
	}
	return descr, objectID, name, nil
}

func oidsEqual(a, b string) bool {
	return trimLeadingDot(a) == trimLeadingDot(b)
}

func trimLeadingDot(s string) string {
	if len(s) > 0 && s[0] == '.' {
		return s[1:]
	}
	return s
}

// expandCIDR lists the host addresses of a block, excluding network and
// broadcast for prefixes shorter than /31.
func expandCIDR(cidr string) ([]string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("parse cidr %q: %w", cidr, err)
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("cidr %q: only IPv4 sweeps are supported", cidr)
	}

	var hosts []string
	for addr := ip.Mask(ipnet.Mask); ipnet.Contains(addr); addr = nextIP(addr) {
		hosts = append(hosts, addr.String())
		if len(hosts) > maxSweepHosts {
			return nil, fmt.Errorf("cidr %q: too many hosts to sweep", cidr)
		}
	}

	// Drop network and broadcast addresses on conventional subnets.
	if ones < 31 && len(hosts) > 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

func nextIP(ip net.IP) net.IP {
	next := make(net.IP, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}
