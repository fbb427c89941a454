// Package config loads and validates the NetSentry agent configuration.
// All recognized options carry defaults; validation runs once at load time
// and any violation is fatal before a single listener starts.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HerbHall/netsentry/pkg/models"
)

// Config is the fully-resolved agent configuration. Immutable after Load;
// hot reload is out of scope.
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	SNMP      SNMPDefaults    `mapstructure:"snmp"`
	Devices   []DeviceConfig  `mapstructure:"devices"`
	Traps     TrapConfig      `mapstructure:"traps"`
	Syslog    SyslogConfig    `mapstructure:"syslog"`
	NetFlow   NetFlowConfig   `mapstructure:"netflow"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Log       LogConfig       `mapstructure:"log"`
}

// AgentConfig identifies this agent to the ingestion service.
type AgentConfig struct {
	ID       string `mapstructure:"id"`
	Hostname string `mapstructure:"hostname"`
}

// IngestConfig describes the outbound connection to the ingestion API.
type IngestConfig struct {
	URL              string        `mapstructure:"url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RegisterRetries  int           `mapstructure:"register_retries"`
	RegisterBackoff  time.Duration `mapstructure:"register_backoff"`
}

// SNMPDefaults apply to every device that doesn't override them.
type SNMPDefaults struct {
	Port         int           `mapstructure:"port"`
	Community    string        `mapstructure:"community"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
}

// V3Credentials holds one set of SNMPv3 USM security parameters.
type V3Credentials struct {
	Username     string `mapstructure:"username"`
	AuthProtocol string `mapstructure:"auth_protocol"`
	AuthPassword string `mapstructure:"auth_password"`
	PrivProtocol string `mapstructure:"priv_protocol"`
	PrivPassword string `mapstructure:"priv_password"`
}

// DeviceConfig is one operator-declared device to poll.
type DeviceConfig struct {
	Name         string            `mapstructure:"name"`
	IP           string            `mapstructure:"ip"`
	Type         models.DeviceType `mapstructure:"type"`
	Port         int               `mapstructure:"port"`
	Community    string            `mapstructure:"community"`
	V3           *V3Credentials    `mapstructure:"v3"`
	Enabled      bool              `mapstructure:"enabled"`
	PollInterval time.Duration     `mapstructure:"poll_interval"`
	CustomOIDs   map[string]string `mapstructure:"custom_oids"`
}

// TrapConfig controls the SNMP trap listener. V3 is optional; when set the
// listener accepts v3 USM notifications in addition to v2c.
type TrapConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	Listen    string         `mapstructure:"listen"`
	Community string         `mapstructure:"community"`
	V3        *V3Credentials `mapstructure:"v3"`
}

// SyslogConfig controls the syslog listeners and source policy.
type SyslogConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	UDPListen          string   `mapstructure:"udp_listen"`
	TCPListen          string   `mapstructure:"tcp_listen"`
	Format             string   `mapstructure:"format"`
	AllowedSources     []string `mapstructure:"allowed_sources"`
	BlockedSources     []string `mapstructure:"blocked_sources"`
	AcceptKnownDevices bool     `mapstructure:"accept_known_devices"`
}

// NetFlowConfig controls the flow collector.
type NetFlowConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// DiscoveryConfig controls the optional discovery sweep.
type DiscoveryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	CIDR        string        `mapstructure:"cidr"`
	Concurrency int           `mapstructure:"concurrency"`
	ProbeRate   int           `mapstructure:"probe_rate"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
	Community   string        `mapstructure:"community"`
	MDNS        bool          `mapstructure:"mdns"`
}

// QueueConfig bounds the event queue.
type QueueConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

// BatchConfig controls the sender's flush policy.
type BatchConfig struct {
	Size     int           `mapstructure:"size"`
	Interval time.Duration `mapstructure:"interval"`
}

// HeartbeatConfig controls the periodic health report.
type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig controls zap initialization.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ingest.timeout", "10s")
	v.SetDefault("ingest.register_retries", 5)
	v.SetDefault("ingest.register_backoff", "2s")

	v.SetDefault("snmp.port", 161)
	v.SetDefault("snmp.community", "public")
	v.SetDefault("snmp.poll_interval", "60s")
	v.SetDefault("snmp.timeout", "2s")
	v.SetDefault("snmp.retries", 1)

	v.SetDefault("traps.enabled", false)
	v.SetDefault("traps.listen", "0.0.0.0:162")
	v.SetDefault("traps.community", "public")

	v.SetDefault("syslog.enabled", false)
	v.SetDefault("syslog.udp_listen", "0.0.0.0:514")
	v.SetDefault("syslog.tcp_listen", "")
	v.SetDefault("syslog.format", "rfc5424")
	v.SetDefault("syslog.accept_known_devices", true)

	v.SetDefault("netflow.enabled", false)
	v.SetDefault("netflow.listen", "0.0.0.0:2055")

	v.SetDefault("discovery.enabled", false)
	v.SetDefault("discovery.concurrency", 32)
	v.SetDefault("discovery.probe_rate", 100)
	v.SetDefault("discovery.ping_timeout", "2s")
	v.SetDefault("discovery.community", "public")
	v.SetDefault("discovery.mdns", false)

	v.SetDefault("queue.max_size", 10000)
	v.SetDefault("batch.size", 100)
	v.SetDefault("batch.interval", "30s")
	v.SetDefault("heartbeat.interval", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads the configuration file at path (optional; defaults apply when
// empty), unmarshals it, resolves per-device fallbacks, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve fills per-device zero values from the SNMP defaults.
func (c *Config) resolve() {
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Port == 0 {
			d.Port = c.SNMP.Port
		}
		if d.Community == "" {
			d.Community = c.SNMP.Community
		}
		if d.PollInterval == 0 {
			d.PollInterval = c.SNMP.PollInterval
		}
		if d.Type == "" {
			d.Type = models.DeviceTypeUnknown
		}
	}
}

// Validate checks every recognized option's range. Any error here is fatal
// at startup.
func (c *Config) Validate() error {
	if c.Ingest.URL == "" {
		return fmt.Errorf("config: ingest.url is required")
	}
	if !strings.HasPrefix(c.Ingest.URL, "http://") && !strings.HasPrefix(c.Ingest.URL, "https://") {
		return fmt.Errorf("config: ingest.url %q must be an http(s) URL", c.Ingest.URL)
	}
	if c.Ingest.Timeout <= 0 {
		return fmt.Errorf("config: ingest.timeout must be positive")
	}
	if c.Queue.MaxSize < 1 {
		return fmt.Errorf("config: queue.max_size must be at least 1, got %d", c.Queue.MaxSize)
	}
	if c.Batch.Size < 1 {
		return fmt.Errorf("config: batch.size must be at least 1, got %d", c.Batch.Size)
	}
	if c.Batch.Interval <= 0 {
		return fmt.Errorf("config: batch.interval must be positive")
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("config: heartbeat.interval must be positive")
	}

	for i, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("config: devices[%d]: name is required", i)
		}
		if net.ParseIP(d.IP) == nil {
			return fmt.Errorf("config: device %q: invalid ip %q", d.Name, d.IP)
		}
		if !models.ValidDeviceType(d.Type) {
			return fmt.Errorf("config: device %q: unknown type %q", d.Name, d.Type)
		}
		if d.Port < 1 || d.Port > 65535 {
			return fmt.Errorf("config: device %q: port %d out of range", d.Name, d.Port)
		}
		if d.PollInterval < time.Second {
			return fmt.Errorf("config: device %q: poll_interval %s below 1s", d.Name, d.PollInterval)
		}
		if d.V3 != nil && d.V3.Username == "" {
			return fmt.Errorf("config: device %q: v3.username is required", d.Name)
		}
	}

	if c.Traps.Enabled && c.Traps.V3 != nil && c.Traps.V3.Username == "" {
		return fmt.Errorf("config: traps.v3.username is required")
	}

	if c.Syslog.Enabled {
		switch c.Syslog.Format {
		case "rfc3164", "rfc5424":
		default:
			return fmt.Errorf("config: syslog.format %q must be rfc3164 or rfc5424", c.Syslog.Format)
		}
		if c.Syslog.UDPListen == "" && c.Syslog.TCPListen == "" {
			return fmt.Errorf("config: syslog enabled but no listener configured")
		}
		for _, src := range append(append([]string{}, c.Syslog.AllowedSources...), c.Syslog.BlockedSources...) {
			if net.ParseIP(src) == nil {
				return fmt.Errorf("config: syslog source %q is not a valid IP", src)
			}
		}
	}

	if c.Discovery.Enabled {
		if _, _, err := net.ParseCIDR(c.Discovery.CIDR); err != nil {
			return fmt.Errorf("config: discovery.cidr %q: %w", c.Discovery.CIDR, err)
		}
		if c.Discovery.Concurrency < 1 {
			return fmt.Errorf("config: discovery.concurrency must be at least 1")
		}
		if c.Discovery.ProbeRate < 1 {
			return fmt.Errorf("config: discovery.probe_rate must be at least 1")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q must be json or console", c.Log.Format)
	}

	return nil
}

// EnabledDevices returns the devices the poller should run loops for.
func (c *Config) EnabledDevices() []DeviceConfig {
	out := make([]DeviceConfig, 0, len(c.Devices))
	for _, d := range c.Devices {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// DeviceIPs returns the IP of every configured device, enabled or not.
// The syslog source policy uses this for known-device matching.
func (c *Config) DeviceIPs() []string {
	out := make([]string, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, d.IP)
	}
	return out
}
