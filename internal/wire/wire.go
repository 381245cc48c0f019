package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version      byte = 1
	kindSnapshot byte = 1
)

var (
	ErrCorrupt = errors.New("pagestate: corrupt snapshot")
	magic4     = [...]byte{'P', 'G', 'S', 'T'}
)

const (
	headerLen  = 4 + 1 + 1 + 4
	recordMeta = 2 + 8 + 8 + 4 // klen + version + lastFetched + vlen
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record is one page entry inside a snapshot.
type Record struct {
	Key         string
	Version     uint64
	LastFetched int64 // unix millis; 0 => never written
	Payload     []byte
}

// Snapshot:
//
//	magic(4) | ver(1) | kind(1=snapshot) | n(u32 be)
//	keyLen(u16 be) | key(keyLen) | version(u64 be) | lastFetched(i64 be) | vlen(u32 be) | payload(vlen) * n
func EncodeSnapshot(records []Record) ([]byte, error) {
	total := headerLen
	for _, r := range records {
		if l := len(r.Key); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("pagestate: invalid page key length %d", l)
		}
		total += recordMeta + len(r.Key) + len(r.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindSnapshot)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint32(u4[:], uint32(len(records)))
	buf.Write(u4[:])

	for _, r := range records {
		binary.BigEndian.PutUint16(u2[:], uint16(len(r.Key)))
		buf.Write(u2[:])
		buf.WriteString(r.Key)

		binary.BigEndian.PutUint64(u8[:], r.Version)
		buf.Write(u8[:])

		binary.BigEndian.PutUint64(u8[:], uint64(r.LastFetched))
		buf.Write(u8[:])

		binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
		buf.Write(u4[:])
		buf.Write(r.Payload)
	}

	return buf.Bytes(), nil
}

// DecodeSnapshot parses b strictly: bad framing, truncation and trailing bytes
// all yield ErrCorrupt. Payloads alias b.
func DecodeSnapshot(b []byte) ([]Record, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindSnapshot {
		return nil, ErrCorrupt
	}

	off := 6
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	// every record needs at least recordMeta+1 bytes; don't trust n for prealloc
	if n > (len(b)-off)/(recordMeta+1) {
		return nil, ErrCorrupt
	}

	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen == 0 || klen > len(b)-off {
			return nil, ErrCorrupt
		}
		key := b[off : off+klen]
		off += klen

		if off+16 > len(b) {
			return nil, ErrCorrupt
		}
		ver := binary.BigEndian.Uint64(b[off : off+8])
		off += 8
		last := int64(binary.BigEndian.Uint64(b[off : off+8]))
		off += 8

		if off+4 > len(b) {
			return nil, ErrCorrupt
		}
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, ErrCorrupt
		}
		payload := b[off : off+vlen]
		off += vlen

		records = append(records, Record{
			Key:         string(key),
			Version:     ver,
			LastFetched: last,
			Payload:     payload,
		})
	}

	if off != len(b) {
		return nil, ErrCorrupt
	}
	return records, nil
}
