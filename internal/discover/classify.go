package discover

import (
	"strings"

	"github.com/HerbHall/netsentry/pkg/models"
)

// sysObjectID enterprise prefixes with an unambiguous vendor product line.
// Checked before the keyword pass because they're more precise.
var objectIDPrefixes = []struct {
	prefix string
	typ    models.DeviceType
}{
	{"1.3.6.1.4.1.318.", models.DeviceTypeUPS},      // APC
	{"1.3.6.1.4.1.534.", models.DeviceTypeUPS},      // Eaton/Powerware
	{"1.3.6.1.4.1.11.2.3.9.", models.DeviceTypePrinter}, // HP JetDirect
	{"1.3.6.1.4.1.641.", models.DeviceTypePrinter},  // Lexmark
	{"1.3.6.1.4.1.12356.", models.DeviceTypeFirewall}, // Fortinet
	{"1.3.6.1.4.1.3224.", models.DeviceTypeFirewall},  // NetScreen
	{"1.3.6.1.4.1.25461.", models.DeviceTypeFirewall}, // Palo Alto
}

// Keyword tables matched case-insensitively against sysDescr. Order
// matters: "Cisco Catalyst" must classify as switch before the generic
// router keywords get a chance.
var descrKeywords = []struct {
	typ      models.DeviceType
	keywords []string
}{
	{models.DeviceTypePrinter, []string{
		"printer", "jetdirect", "laserjet", "officejet", "lexmark",
		"xerox", "ricoh", "kyocera", "konica", "imagerunner",
	}},
	{models.DeviceTypeFirewall, []string{
		"asa", "fortigate", "fortinet", "palo alto", "pfsense",
		"sonicwall", "firewall", "netscreen",
	}},
	{models.DeviceTypeUPS, []string{
		"ups", "smart-ups", "apc ", "eaton", "powerware", "tripp lite",
	}},
	{models.DeviceTypeSwitch, []string{
		"catalyst", "nexus", "procurve", "aruba", "ex series", "switch",
	}},
	{models.DeviceTypeRouter, []string{
		"router", "cisco ios", "junos", "mikrotik", "routeros", "edgeos",
	}},
	{models.DeviceTypeServer, []string{
		"linux", "windows", "ubuntu", "debian", "centos", "red hat",
		"freebsd", "esxi", "server",
	}},
}

// Classify maps an SNMP fingerprint to a device type. Empty or
// unrecognized descriptions classify as unknown.
func Classify(sysDescr, sysObjectID string) models.DeviceType {
	for _, p := range objectIDPrefixes {
		if strings.HasPrefix(sysObjectID, p.prefix) {
			return p.typ
		}
	}

	descr := strings.ToLower(sysDescr)
	if descr == "" {
		return models.DeviceTypeUnknown
	}
	for _, group := range descrKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(descr, kw) {
				return group.typ
			}
		}
	}
	return models.DeviceTypeUnknown
}
