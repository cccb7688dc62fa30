package packet

import (
	"encoding/binary"
	"fmt"
)

const (
	structHeaderLen     = 18 // u16 version, u64 target job, u64 source job
	structHeaderVersion = 1
	protoHeaderLen      = 8 // u32 msg type, u32 header length
	noJob               = ^uint64(0)
)

// Frame prepends the GC header to body. Protobuf messages get an empty
// CMsgProtoBufHeader; struct messages get a version 1 header with no job ids.
func Frame(l Language, proto bool, body []byte) []byte {
	if proto {
		buf := make([]byte, protoHeaderLen, protoHeaderLen+len(body))
		binary.LittleEndian.PutUint32(buf[0:4], Join(l, true))
		binary.LittleEndian.PutUint32(buf[4:8], 0)
		return append(buf, body...)
	}
	buf := make([]byte, structHeaderLen, structHeaderLen+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], structHeaderVersion)
	binary.LittleEndian.PutUint64(buf[2:10], noJob)
	binary.LittleEndian.PutUint64(buf[10:18], noJob)
	return append(buf, body...)
}

// Unframe strips the GC header from payload and returns the message body.
func Unframe(proto bool, payload []byte) ([]byte, error) {
	if proto {
		if len(payload) < protoHeaderLen {
			return nil, fmt.Errorf("proto header: short payload (%d bytes)", len(payload))
		}
		hlen := int(binary.LittleEndian.Uint32(payload[4:8]))
		if hlen < 0 || protoHeaderLen+hlen > len(payload) {
			return nil, fmt.Errorf("proto header: length %d exceeds payload", hlen)
		}
		return payload[protoHeaderLen+hlen:], nil
	}
	if len(payload) < structHeaderLen {
		return nil, fmt.Errorf("struct header: short payload (%d bytes)", len(payload))
	}
	return payload[structHeaderLen:], nil
}
