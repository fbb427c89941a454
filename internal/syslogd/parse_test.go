package syslogd

import "testing"

func TestParsePRI(t *testing.T) {
	tests := []struct {
		name         string
		msg          string
		wantFacility int
		wantSeverity int
		wantErr      bool
	}{
		{"local4 notice", "<165>rest", 20, 5, false},
		{"kernel emergency", "<0>rest", 0, 0, false},
		{"max value", "<191>rest", 23, 7, false},
		{"out of range", "<192>rest", 0, 0, true},
		{"no bracket", "165 rest", 0, 0, true},
		{"empty pri", "<>rest", 0, 0, true},
		{"non-numeric", "<ab>rest", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facility, severity, _, err := parsePRI(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePRI(%q) error = %v, wantErr %v", tt.msg, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if facility != tt.wantFacility || severity != tt.wantSeverity {
				t.Errorf("parsePRI(%q) = (%d, %d), want (%d, %d)",
					tt.msg, facility, severity, tt.wantFacility, tt.wantSeverity)
			}
		})
	}
}

func TestParseRFC5424(t *testing.T) {
	msg := `<165>1 2025-06-11T22:14:15.003Z mymachine.example.com evntslog 1234 ID47 [exampleSDID@32473 iut="3" eventSource="Application"] An application event`

	rec, err := parseRFC5424(msg)
	if err != nil {
		t.Fatalf("parseRFC5424() error = %v", err)
	}
	if rec.Facility != 20 || rec.Severity != 5 {
		t.Errorf("facility/severity = %d/%d, want 20/5", rec.Facility, rec.Severity)
	}
	if rec.Hostname != "mymachine.example.com" {
		t.Errorf("Hostname = %q", rec.Hostname)
	}
	if rec.Tag != "evntslog" {
		t.Errorf("Tag = %q, want evntslog", rec.Tag)
	}
	if rec.Message != "An application event" {
		t.Errorf("Message = %q", rec.Message)
	}
	if rec.StructuredData["exampleSDID@32473.iut"] != "3" {
		t.Errorf("StructuredData = %v, want iut=3 under exampleSDID@32473", rec.StructuredData)
	}
	if rec.StructuredData["exampleSDID@32473.eventSource"] != "Application" {
		t.Errorf("StructuredData missing eventSource: %v", rec.StructuredData)
	}
}

func TestParseRFC5424NilFields(t *testing.T) {
	rec, err := parseRFC5424("<34>1 2025-06-11T22:14:15Z - su - ID47 - 'su root' failed")
	if err != nil {
		t.Fatalf("parseRFC5424() error = %v", err)
	}
	if rec.Hostname != "" {
		t.Errorf("Hostname = %q, want empty for nil field", rec.Hostname)
	}
	if rec.Tag != "su" {
		t.Errorf("Tag = %q, want su", rec.Tag)
	}
	if rec.Message != "'su root' failed" {
		t.Errorf("Message = %q", rec.Message)
	}
	if rec.StructuredData != nil {
		t.Errorf("StructuredData = %v, want nil", rec.StructuredData)
	}
}

func TestParseRFC3164(t *testing.T) {
	rec, err := parseRFC3164("<34>Oct 11 22:14:15 mymachine su[230]: 'su root' failed on /dev/pts/8")
	if err != nil {
		t.Fatalf("parseRFC3164() error = %v", err)
	}
	if rec.Facility != 4 || rec.Severity != 2 {
		t.Errorf("facility/severity = %d/%d, want 4/2", rec.Facility, rec.Severity)
	}
	if rec.Hostname != "mymachine" {
		t.Errorf("Hostname = %q, want mymachine", rec.Hostname)
	}
	if rec.Tag != "su" {
		t.Errorf("Tag = %q, want su", rec.Tag)
	}
	if rec.Message != "'su root' failed on /dev/pts/8" {
		t.Errorf("Message = %q", rec.Message)
	}
}

func TestParseRFC3164Unstructured(t *testing.T) {
	// No parseable timestamp+hostname header: whole remainder is the message.
	rec, err := parseRFC3164("<13>something freeform without a header")
	if err != nil {
		t.Fatalf("parseRFC3164() error = %v", err)
	}
	if rec.Tag != "unknown" {
		t.Errorf("Tag = %q, want unknown", rec.Tag)
	}
	if rec.Message != "something freeform without a header" {
		t.Errorf("Message = %q", rec.Message)
	}
}

func TestParseFallback(t *testing.T) {
	// RFC3164 input with RFC5424 preferred still parses via fallback.
	rec, err := parse("<34>Oct 11 22:14:15 host1 sshd: accepted\n", "rfc5424")
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if rec.Hostname != "host1" || rec.Tag != "sshd" {
		t.Errorf("fallback parse = %+v", rec)
	}

	// And the other direction.
	rec, err = parse("<165>1 2025-06-11T22:14:15Z host2 app - - - hello", "rfc3164")
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if rec.Hostname != "host2" || rec.Message != "hello" {
		t.Errorf("fallback parse = %+v", rec)
	}

	if _, err := parse("", "rfc5424"); err == nil {
		t.Error("parse(empty) should fail")
	}
	if _, err := parse("no pri at all", "rfc5424"); err == nil {
		t.Error("parse without PRI should fail")
	}
}

func TestSeverityToEvent(t *testing.T) {
	want := map[int]int{0: 5, 1: 5, 2: 5, 3: 4, 4: 3, 5: 2, 6: 1, 7: 1}
	for syslogSev, eventSev := range want {
		if got := severityToEvent[syslogSev]; got != eventSev {
			t.Errorf("severityToEvent[%d] = %d, want %d", syslogSev, got, eventSev)
		}
	}
}

func TestSourcePolicy(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		blocked     []string
		known       []string
		acceptKnown bool
		ip          string
		want        bool
	}{
		{"allow-listed", []string{"10.0.0.1"}, nil, nil, false, "10.0.0.1", true},
		{"not listed", []string{"10.0.0.1"}, nil, nil, false, "10.0.0.2", false},
		{"blocked wins over allowed", []string{"10.0.0.1"}, []string{"10.0.0.1"}, nil, false, "10.0.0.1", false},
		{"known device accepted", nil, nil, []string{"10.0.0.3"}, true, "10.0.0.3", true},
		{"known device ignored when disabled", nil, nil, []string{"10.0.0.3"}, false, "10.0.0.3", false},
		{"blocked wins over known", nil, []string{"10.0.0.3"}, []string{"10.0.0.3"}, true, "10.0.0.3", false},
		{"empty policy denies", nil, nil, nil, true, "10.0.0.9", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSourcePolicy(tt.allowed, tt.blocked, tt.known, tt.acceptKnown)
			if got := p.Accept(tt.ip); got != tt.want {
				t.Errorf("Accept(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}
