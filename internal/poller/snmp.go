package poller

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/HerbHall/netsentry/internal/config"
)

// Session is one device's SNMP transport for the duration of a poll cycle.
// The production implementation wraps gosnmp; tests substitute fakes.
type Session interface {
	// Get fetches a single OID value. Errors are per-OID and isolate:
	// the caller logs and continues with the remaining OIDs.
	Get(oid string) (any, error)
	Close() error
}

// SessionFactory opens a Session for one device.
type SessionFactory func(dev config.DeviceConfig, defaults config.SNMPDefaults) (Session, error)

type snmpSession struct {
	client *gosnmp.GoSNMP
}

// NewSNMPSession is the production SessionFactory. It builds a v2c or v3
// USM client from the device configuration and connects the UDP socket.
func NewSNMPSession(dev config.DeviceConfig, defaults config.SNMPDefaults) (Session, error) {
	client := &gosnmp.GoSNMP{
		Target:  dev.IP,
		Port:    uint16(dev.Port),
		Timeout: defaults.Timeout,
		Retries: defaults.Retries,
	}

	if dev.V3 != nil {
		if err := ConfigureV3(client, dev.V3); err != nil {
			return nil, err
		}
	} else {
		client.Version = gosnmp.Version2c
		client.Community = dev.Community
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", dev.IP, err)
	}
	return &snmpSession{client: client}, nil
}

// ConfigureV3 switches client to SNMPv3 USM using the given credentials.
// Message flags follow the credential set: priv implies AuthPriv, auth alone
// AuthNoPriv, neither NoAuthNoPriv. The trap receiver shares this to accept
// v3 notifications.
func ConfigureV3(client *gosnmp.GoSNMP, v3 *config.V3Credentials) error {
	auth, err := authProtocol(v3.AuthProtocol)
	if err != nil {
		return err
	}
	priv, err := privProtocol(v3.PrivProtocol)
	if err != nil {
		return err
	}

	client.Version = gosnmp.Version3
	client.SecurityModel = gosnmp.UserSecurityModel

	switch {
	case priv != gosnmp.NoPriv:
		client.MsgFlags = gosnmp.AuthPriv
	case auth != gosnmp.NoAuth:
		client.MsgFlags = gosnmp.AuthNoPriv
	default:
		client.MsgFlags = gosnmp.NoAuthNoPriv
	}

	client.SecurityParameters = &gosnmp.UsmSecurityParameters{
		UserName:                 v3.Username,
		AuthenticationProtocol:   auth,
		AuthenticationPassphrase: v3.AuthPassword,
		PrivacyProtocol:          priv,
		PrivacyPassphrase:        v3.PrivPassword,
	}
	return nil
}

func (s *snmpSession) Get(oid string) (any, error) {
	result, err := s.client.Get([]string{oid})
	if err != nil {
		return nil, err
	}
	if len(result.Variables) == 0 {
		return nil, fmt.Errorf("snmp get %s: empty response", oid)
	}

	vb := result.Variables[0]
	switch vb.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return nil, fmt.Errorf("snmp get %s: %v", oid, vb.Type)
	case gosnmp.OctetString:
		if b, ok := vb.Value.([]byte); ok {
			return string(b), nil
		}
		return vb.Value, nil
	default:
		return vb.Value, nil
	}
}

func (s *snmpSession) Close() error {
	if s.client.Conn != nil {
		return s.client.Conn.Close()
	}
	return nil
}

func authProtocol(name string) (gosnmp.SnmpV3AuthProtocol, error) {
	switch strings.ToLower(name) {
	case "", "noauth":
		return gosnmp.NoAuth, nil
	case "md5":
		return gosnmp.MD5, nil
	case "sha":
		return gosnmp.SHA, nil
	case "sha256":
		return gosnmp.SHA256, nil
	case "sha512":
		return gosnmp.SHA512, nil
	default:
		return gosnmp.NoAuth, fmt.Errorf("unknown auth protocol %q", name)
	}
}

func privProtocol(name string) (gosnmp.SnmpV3PrivProtocol, error) {
	switch strings.ToLower(name) {
	case "", "nopriv":
		return gosnmp.NoPriv, nil
	case "des":
		return gosnmp.DES, nil
	case "aes":
		return gosnmp.AES, nil
	case "aes256":
		return gosnmp.AES256, nil
	default:
		return gosnmp.NoPriv, fmt.Errorf("unknown priv protocol %q", name)
	}
}

// isAuthError detects SNMPv3 USM failures so the poll cycle can be skipped
// and logged instead of reported as device unreachability.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "unknown user") ||
		strings.Contains(msg, "usm") ||
		strings.Contains(msg, "wrong digest")
}
