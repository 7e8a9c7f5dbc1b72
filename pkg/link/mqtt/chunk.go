package mqtt

import (
	"github.com/golang/protobuf/proto"
)

// Chunk is the MQTT payload carrying a run of link bytes. Seq increases by
// one per chunk from the same sender.
type Chunk struct {
	Seq                  uint32   `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Data                 []byte   `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

// Reset implements proto.Message.
func (m *Chunk) Reset() { *m = Chunk{} }

// String implements proto.Message.
func (m *Chunk) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Chunk) ProtoMessage() {}

// EncodeChunk marshals a chunk.
func EncodeChunk(seq uint32, data []byte) ([]byte, error) {
	return proto.Marshal(&Chunk{Seq: seq, Data: data})
}

// DecodeChunk unmarshals a chunk.
func DecodeChunk(payload []byte) (*Chunk, error) {
	var c Chunk
	if err := proto.Unmarshal(payload, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
