package syslogd

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/HerbHall/netsentry/pkg/models"
)

var errNoPRI = errors.New("syslog: missing PRI field")

// rfc3164Header matches "Mmm dd hh:mm:ss hostname tag: ..." after the PRI.
var rfc3164Header = regexp.MustCompile(
	`^([A-Z][a-z]{2}\s+\d{1,2}\s\d{2}:\d{2}:\d{2})\s+(\S+)\s+([^:\s\[]+)(?:\[(\d+)\])?:\s*(.*)$`)

// sdElement matches one [id key="value" ...] structured-data block.
var sdElement = regexp.MustCompile(`\[([^\s\]]+)((?:\s+[^=\s\]]+="[^"]*")*)\]`)

var sdParam = regexp.MustCompile(`([^=\s]+)="([^"]*)"`)

// severityToEvent maps syslog severity (0=Emergency..7=Debug) onto the
// event scale (1=Info..5=Critical).
var severityToEvent = map[int]int{
	0: 5, 1: 5, 2: 5,
	3: 4,
	4: 3,
	5: 2,
	6: 1, 7: 1,
}

// parsePRI strips the leading <N> and decomposes it into facility and
// syslog severity (facility = N>>3, severity = N&7).
func parsePRI(msg string) (facility, severity int, rest string, err error) {
	if len(msg) < 3 || msg[0] != '<' {
		return 0, 0, "", errNoPRI
	}
	end := strings.IndexByte(msg, '>')
	if end < 2 || end > 4 {
		return 0, 0, "", errNoPRI
	}
	pri, convErr := strconv.Atoi(msg[1:end])
	if convErr != nil || pri < 0 || pri > 191 {
		return 0, 0, "", errNoPRI
	}
	return pri >> 3, pri & 0x7, msg[end+1:], nil
}

// parseRFC5424 parses "<PRI>1 TIMESTAMP HOSTNAME APP PROCID MSGID [SD] MSG".
func parseRFC5424(msg string) (*models.SyslogRecord, error) {
	facility, severity, rest, err := parsePRI(msg)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(rest, "1 ") {
		return nil, fmt.Errorf("syslog: not RFC5424 (version field)")
	}
	rest = rest[2:]

	// TIMESTAMP HOSTNAME APP-NAME PROCID MSGID, space-separated, "-" for nil.
	fields := strings.SplitN(rest, " ", 6)
	if len(fields) < 6 {
		return nil, fmt.Errorf("syslog: RFC5424 header too short")
	}
	hostname, app := fields[1], fields[2]
	remainder := fields[5]

	rec := &models.SyslogRecord{
		Facility: facility,
		Severity: severity,
		Hostname: nilDash(hostname),
		Tag:      nilDash(app),
	}

	switch {
	case strings.HasPrefix(remainder, "- "):
		rec.Message = remainder[2:]
	case remainder == "-":
		rec.Message = ""
	case strings.HasPrefix(remainder, "["):
		sd, after := parseStructuredData(remainder)
		rec.StructuredData = sd
		rec.Message = strings.TrimPrefix(after, " ")
	default:
		return nil, fmt.Errorf("syslog: malformed RFC5424 structured data")
	}

	if rec.Tag == "" {
		rec.Tag = "unknown"
	}
	return rec, nil
}

// parseStructuredData consumes leading [id k="v"...] elements and returns
// the flattened id.key map plus the unconsumed tail.
func parseStructuredData(s string) (map[string]string, string) {
	sd := make(map[string]string)
	rest := s
	for strings.HasPrefix(rest, "[") {
		loc := sdElement.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] != 0 {
			break
		}
		id := rest[loc[2]:loc[3]]
		params := rest[loc[4]:loc[5]]
		for _, kv := range sdParam.FindAllStringSubmatch(params, -1) {
			sd[id+"."+kv[1]] = kv[2]
		}
		rest = rest[loc[1]:]
	}
	if len(sd) == 0 {
		sd = nil
	}
	return sd, rest
}

// parseRFC3164 parses the legacy format. When the timestamp+hostname
// pattern doesn't match, the whole remainder becomes the message and the
// tag is "unknown".
func parseRFC3164(msg string) (*models.SyslogRecord, error) {
	facility, severity, rest, err := parsePRI(msg)
	if err != nil {
		return nil, err
	}

	rec := &models.SyslogRecord{
		Facility: facility,
		Severity: severity,
	}

	if m := rfc3164Header.FindStringSubmatch(rest); m != nil {
		rec.Hostname = m[2]
		rec.Tag = m[3]
		rec.Message = m[5]
	} else {
		rec.Tag = "unknown"
		rec.Message = rest
	}
	return rec, nil
}

// parse tries RFC5424 first and falls back to RFC3164, matching how mixed
// fleets actually behave. The configured default only reorders preference.
func parse(msg string, preferFormat string) (*models.SyslogRecord, error) {
	msg = strings.TrimRight(msg, "\r\n")
	if msg == "" {
		return nil, errNoPRI
	}

	if preferFormat == "rfc3164" {
		rec, err := parseRFC3164(msg)
		// RFC3164 accepts nearly anything, so only trust it when the
		// header actually matched; otherwise give RFC5424 a chance.
		if err == nil && rec.Tag != "unknown" {
			return rec, nil
		}
		if rec5424, err5424 := parseRFC5424(msg); err5424 == nil {
			return rec5424, nil
		}
		return rec, err
	}

	if rec, err := parseRFC5424(msg); err == nil {
		return rec, nil
	}
	return parseRFC3164(msg)
}
