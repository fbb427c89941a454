package netflow

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/HerbHall/netsentry/pkg/models"
)

const (
	v5HeaderLen = 24
	v5RecordLen = 48
)

// decodeV5 parses a NetFlow v5 export packet: a fixed 24-byte header
// followed by count fixed 48-byte records. A buffer shorter than the header
// claims yields the records that fit; truncation is not an error.
func decodeV5(buf []byte, now time.Time) []models.FlowRecord {
	if len(buf) < v5HeaderLen {
		return nil
	}

	count := int(binary.BigEndian.Uint16(buf[2:4]))

	records := make([]models.FlowRecord, 0, count)
	for i := 0; i < count; i++ {
		off := v5HeaderLen + i*v5RecordLen
		if off+v5RecordLen > len(buf) {
			break
		}
		r := buf[off : off+v5RecordLen]

		rec := models.FlowRecord{
			Version:   5,
			SrcAddr:   net.IP(append([]byte(nil), r[0:4]...)),
			DstAddr:   net.IP(append([]byte(nil), r[4:8]...)),
			Packets:   uint64(binary.BigEndian.Uint32(r[16:20])),
			Bytes:     uint64(binary.BigEndian.Uint32(r[20:24])),
			SrcPort:   binary.BigEndian.Uint16(r[32:34]),
			DstPort:   binary.BigEndian.Uint16(r[34:36]),
			Protocol:  r[38],
			Timestamp: now,
		}
		rec.Suspicious = isSuspicious(rec)
		records = append(records, rec)
	}
	return records
}

// v5Sampling extracts the sampling mode and interval from a v5 header.
// The top 2 bits are the mode, the rest is the interval.
func v5Sampling(buf []byte) (mode uint16, interval uint16) {
	if len(buf) < v5HeaderLen {
		return 0, 0
	}
	raw := binary.BigEndian.Uint16(buf[22:24])
	return raw >> 14, raw & 0x3FFF
}
