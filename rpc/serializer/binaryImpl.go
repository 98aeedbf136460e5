package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/JonasWeidner/oDB/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present. The wire layout
// is: [MsgType][flags1][flags2] followed by the present fields in flag
// order: strings and byte fields as u32 length + data, lists as u32 count
// with each item u32 length + data, Count as u64, Found as one byte.
const (
	hasDatabase   byte = 1 << 0
	hasCollection byte = 1 << 1
	hasIndex      byte = 1 << 2
	hasKey        byte = 1 << 3
	hasRange      byte = 1 << 4
	hasValue      byte = 1 << 5
	hasSchema     byte = 1 << 6
	hasErr        byte = 1 << 7

	hasKeys   byte = 1 << 0
	hasValues byte = 1 << 1
	hasCount  byte = 1 << 2
	hasFound  byte = 1 << 3
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var flags1, flags2 byte

	// header placeholder, filled in below
	out := make([]byte, 3, b.sizeBytes(msg))
	out[0] = byte(msg.MsgType)

	if msg.Database != "" {
		flags1 |= hasDatabase
		out = appendChunk(out, []byte(msg.Database))
	}
	if msg.Collection != "" {
		flags1 |= hasCollection
		out = appendChunk(out, []byte(msg.Collection))
	}
	if msg.Index != "" {
		flags1 |= hasIndex
		out = appendChunk(out, []byte(msg.Index))
	}
	if msg.Key != nil {
		flags1 |= hasKey
		out = appendChunk(out, msg.Key)
	}
	if msg.Range != nil {
		flags1 |= hasRange
		out = appendChunk(out, msg.Range)
	}
	if msg.Value != nil {
		flags1 |= hasValue
		out = appendChunk(out, msg.Value)
	}
	if msg.Schema != nil {
		flags1 |= hasSchema
		out = appendChunk(out, msg.Schema)
	}
	if msg.Err != "" {
		flags1 |= hasErr
		out = appendChunk(out, []byte(msg.Err))
	}

	if msg.Keys != nil {
		flags2 |= hasKeys
		out = appendList(out, msg.Keys)
	}
	if msg.Values != nil {
		flags2 |= hasValues
		out = appendList(out, msg.Values)
	}
	if msg.Count > 0 {
		flags2 |= hasCount
		out = binary.BigEndian.AppendUint64(out, msg.Count)
	}
	if msg.Found {
		flags2 |= hasFound
		out = append(out, 1)
	}

	out[1] = flags1
	out[2] = flags2
	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + two flag bytes)
	if len(data) < 3 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags1, flags2 := data[1], data[2]
	r := &reader{data: data, pos: 3}

	var err error
	readChunk := func(flag byte, name string) []byte {
		if err != nil || flags1&flag == 0 {
			return nil
		}
		var chunk []byte
		if chunk, err = r.chunk(name); err != nil {
			return nil
		}
		return chunk
	}

	msg.Database = string(readChunk(hasDatabase, "database"))
	msg.Collection = string(readChunk(hasCollection, "collection"))
	msg.Index = string(readChunk(hasIndex, "index"))
	msg.Key = readChunk(hasKey, "key")
	msg.Range = readChunk(hasRange, "range")
	msg.Value = readChunk(hasValue, "value")
	msg.Schema = readChunk(hasSchema, "schema")
	msg.Err = string(readChunk(hasErr, "err"))
	if err != nil {
		return err
	}

	msg.Keys, msg.Values = nil, nil
	if flags2&hasKeys != 0 {
		if msg.Keys, err = r.list("keys"); err != nil {
			return err
		}
	}
	if flags2&hasValues != 0 {
		if msg.Values, err = r.list("values"); err != nil {
			return err
		}
	}

	msg.Count = 0
	if flags2&hasCount != 0 {
		if r.pos+8 > len(r.data) {
			return fmt.Errorf("data too short for count")
		}
		msg.Count = binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
		r.pos += 8
	}

	msg.Found = false
	if flags2&hasFound != 0 {
		if r.pos+1 > len(r.data) {
			return fmt.Errorf("data too short for found flag")
		}
		msg.Found = r.data[r.pos] != 0
		r.pos++
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// appendChunk appends a u32 length followed by the data itself.
func appendChunk(out, data []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	return append(out, data...)
}

// appendList appends a u32 item count followed by each item as a chunk.
func appendList(out []byte, items [][]byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(items)))
	for _, item := range items {
		out = appendChunk(out, item)
	}
	return out
}

// reader tracks a read position with bounds checking.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) chunk(name string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4

	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", name)
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) list(name string) ([][]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s count", name)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4

	items := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		item, err := r.chunk(name)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 2 flag bytes
	size := 3

	for _, s := range []string{msg.Database, msg.Collection, msg.Index, msg.Err} {
		if s != "" {
			size += 4 + len(s)
		}
	}
	for _, f := range [][]byte{msg.Key, msg.Range, msg.Value, msg.Schema} {
		if f != nil {
			size += 4 + len(f)
		}
	}
	for _, list := range [][][]byte{msg.Keys, msg.Values} {
		if list != nil {
			size += 4
			for _, item := range list {
				size += 4 + len(item)
			}
		}
	}
	if msg.Count > 0 {
		size += 8
	}
	if msg.Found {
		size += 1
	}

	return size
}
