package netflow

import (
	"encoding/binary"
	"errors"
	"net"
	"time"

	"github.com/HerbHall/netsentry/pkg/models"
)

// Recognized template field types (NetFlow v9 and IPFIX share these).
const (
	fieldInBytes     uint16 = 1
	fieldInPkts      uint16 = 2
	fieldProtocol    uint16 = 4
	fieldL4SrcPort   uint16 = 7
	fieldIPv4SrcAddr uint16 = 8
	fieldL4DstPort   uint16 = 11
	fieldIPv4DstAddr uint16 = 12
)

// FlowSet ids below 256 are reserved for template-carrying sets.
const (
	v9TemplateSetID         uint16 = 0
	v9OptionsTemplateSetID  uint16 = 1
	ipfixTemplateSetID      uint16 = 2
	ipfixOptionsTemplateSID uint16 = 3
	dataSetMinID            uint16 = 256
)

const (
	v9HeaderLen    = 20
	ipfixHeaderLen = 16
)

// ErrTruncatedPacket marks a packet too short for its own framing.
var ErrTruncatedPacket = errors.New("netflow: truncated packet")

// ErrMissingTemplate marks a Data FlowSet whose template has not arrived.
// The set is dropped whole; UDP gives no ordering guarantee, so data before
// template is an accepted, counted occurrence.
var ErrMissingTemplate = errors.New("netflow: no template for data flowset")

// decodeV9 walks the FlowSets of a NetFlow v9 or IPFIX packet. Template
// sets update the cache; data sets decode against it. missing counts the
// data sets dropped for want of a template.
func decodeV9(cache *templateCache, exporter string, buf []byte, now time.Time) (records []models.FlowRecord, missing int, err error) {
	if len(buf) < 2 {
		return nil, 0, ErrTruncatedPacket
	}
	version := binary.BigEndian.Uint16(buf[0:2])

	var headerLen int
	switch version {
	case 9:
		headerLen = v9HeaderLen
	case 10:
		headerLen = ipfixHeaderLen
	default:
		return nil, 0, errors.New("netflow: not a v9/IPFIX packet")
	}
	if len(buf) < headerLen {
		return nil, 0, ErrTruncatedPacket
	}

	// v9 counts FlowSets at buf[2:4]; IPFIX carries total length instead.
	// Both walks are bounded by the buffer, so neither field is trusted.
	var sourceID uint32
	if version == 9 {
		sourceID = binary.BigEndian.Uint32(buf[16:20])
	} else {
		sourceID = binary.BigEndian.Uint32(buf[12:16])
	}

	off := headerLen
	for off+4 <= len(buf) {
		setID := binary.BigEndian.Uint16(buf[off : off+2])
		setLen := int(binary.BigEndian.Uint16(buf[off+2 : off+4]))
		if setLen < 4 || off+setLen > len(buf) {
			break
		}
		body := buf[off+4 : off+setLen]

		switch {
		case setID == v9TemplateSetID || setID == ipfixTemplateSetID:
			parseTemplates(cache, exporter, sourceID, body)
		case setID == v9OptionsTemplateSetID || setID == ipfixOptionsTemplateSID:
			// Options templates describe exporter metadata, not flows.
		case setID >= dataSetMinID:
			tmpl, ok := cache.get(exporter, sourceID, setID)
			if !ok {
				missing++
				break
			}
			records = append(records, decodeDataSet(tmpl, version, body, now)...)
		}

		off += setLen
	}

	return records, missing, nil
}

// parseTemplates reads every (template_id, field_count) group in a Template
// FlowSet body and stores the layouts, overwriting prior definitions.
func parseTemplates(cache *templateCache, exporter string, sourceID uint32, body []byte) {
	off := 0
	for off+4 <= len(body) {
		templateID := binary.BigEndian.Uint16(body[off : off+2])
		fieldCount := int(binary.BigEndian.Uint16(body[off+2 : off+4]))
		off += 4

		if off+fieldCount*4 > len(body) {
			return
		}

		t := &template{Fields: make([]templateField, 0, fieldCount)}
		for i := 0; i < fieldCount; i++ {
			ft := binary.BigEndian.Uint16(body[off : off+2])
			fl := binary.BigEndian.Uint16(body[off+2 : off+4])
			t.Fields = append(t.Fields, templateField{Type: ft, Length: fl})
			t.RecordLen += int(fl)
			off += 4
		}

		if templateID >= dataSetMinID && t.RecordLen > 0 {
			cache.put(exporter, sourceID, templateID, t)
		}
	}
}

// decodeDataSet walks fixed-length records until the remaining bytes cannot
// hold one more. Trailing padding falls out naturally.
func decodeDataSet(t *template, version uint16, body []byte, now time.Time) []models.FlowRecord {
	var records []models.FlowRecord
	for off := 0; off+t.RecordLen <= len(body); off += t.RecordLen {
		rec := decodeRecord(t, version, body[off:off+t.RecordLen], now)
		rec.Suspicious = isSuspicious(rec)
		records = append(records, rec)
	}
	return records
}

// decodeRecord extracts the recognized fields of one record; unrecognized
// field types are skipped by their declared length.
func decodeRecord(t *template, version uint16, r []byte, now time.Time) models.FlowRecord {
	rec := models.FlowRecord{Version: version, Timestamp: now}

	off := 0
	for _, f := range t.Fields {
		val := r[off : off+int(f.Length)]
		switch f.Type {
		case fieldIPv4SrcAddr:
			if f.Length == 4 {
				rec.SrcAddr = net.IP(append([]byte(nil), val...))
			}
		case fieldIPv4DstAddr:
			if f.Length == 4 {
				rec.DstAddr = net.IP(append([]byte(nil), val...))
			}
		case fieldL4SrcPort:
			rec.SrcPort = uint16(beUint(val))
		case fieldL4DstPort:
			rec.DstPort = uint16(beUint(val))
		case fieldProtocol:
			rec.Protocol = uint8(beUint(val))
		case fieldInBytes:
			rec.Bytes = beUint(val)
		case fieldInPkts:
			rec.Packets = beUint(val)
		}
		off += int(f.Length)
	}
	return rec
}

// beUint reads a big-endian unsigned integer of 1..8 bytes.
func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
