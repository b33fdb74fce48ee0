package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎语音 WebSocket 二进制帧协议：
//
//	byte 0: protocol version (4 bits) | header size in 4-byte words (4 bits)
//	byte 1: message type (4 bits)     | message flags (4 bits)
//	byte 2: serialization (4 bits)    | compression (4 bits)
//	byte 3: reserved
//
// 之后依次是可选的 sequence、事件元数据、错误码，以及 4 字节大端长度前缀的 payload。
const protocolVersion uint8 = 0b0001

// MessageType 消息类型
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	AudioOnlyRequest        MessageType = 0b0010
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// MessageFlags 消息标志位
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
	WithEvent              MessageFlags = 0b0100

	sequenceMask MessageFlags = 0b0011
)

// SerializationMethod 序列化方法
type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

// CompressionMethod 压缩方法
type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// EventType 服务端事件类型
type EventType int32

const (
	EventStartConnection    EventType = 1
	EventFinishConnection   EventType = 2
	EventConnectionStarted  EventType = 50
	EventConnectionFailed   EventType = 51
	EventConnectionFinished EventType = 52
	EventSessionStarted     EventType = 150
	EventSessionFinished    EventType = 152
	EventSessionFailed      EventType = 153
)

// Frame 是一条完整的协议消息
type Frame struct {
	Type          MessageType
	Flags         MessageFlags
	Serialization SerializationMethod
	Compression   CompressionMethod
	Sequence      int32
	Event         EventType
	SessionID     string
	ConnectID     string
	ErrorCode     uint32
	Payload       []byte
}

// NewClientRequest 构造携带 JSON 请求体的客户端帧
func NewClientRequest(body []byte, compression CompressionMethod) (*Frame, error) {
	payload, err := CompressPayload(body, compression)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Type:          FullClientRequest,
		Flags:         NoSequenceNumber,
		Serialization: JSONSerialization,
		Compression:   compression,
		Payload:       payload,
	}, nil
}

// HasEvent 表示帧是否携带事件元数据
func (f *Frame) HasEvent() bool {
	return f.Flags&WithEvent == WithEvent
}

// Final 表示该帧是否为最后一包
func (f *Frame) Final() bool {
	switch f.Flags & sequenceMask {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	default:
		return f.HasEvent() && f.Event == EventSessionFinished
	}
}

// Body 返回解压后的 payload
func (f *Frame) Body() ([]byte, error) {
	return DecompressPayload(f.Payload, f.Compression)
}

// MarshalBinary 编码为线上格式
func (f *Frame) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{
		protocolVersion<<4 | 0b0001,
		uint8(f.Type)<<4 | uint8(f.Flags),
		uint8(f.Serialization)<<4 | uint8(f.Compression),
		0x00,
	})

	switch f.Flags & sequenceMask {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		writeUint32(&buf, uint32(f.Sequence))
	}

	if f.HasEvent() {
		writeUint32(&buf, uint32(f.Event))
		if eventCarriesSessionID(f.Event) {
			writeSized(&buf, []byte(f.SessionID))
		}
		if eventCarriesConnectID(f.Event) {
			writeSized(&buf, []byte(f.ConnectID))
		}
	}

	if f.Type == ErrorMessage {
		writeUint32(&buf, f.ErrorCode)
	}

	writeSized(&buf, f.Payload)
	return buf.Bytes(), nil
}

// UnmarshalBinary 从线上格式解码
func (f *Frame) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if version := head[0] >> 4; version != protocolVersion {
		return fmt.Errorf("unsupported protocol version: %d", version)
	}

	// header size 以 4 字节为单位，跳过扩展部分
	if extra := int(head[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := r.Seek(int64(extra), io.SeekCurrent); err != nil {
			return fmt.Errorf("failed to skip extended header: %w", err)
		}
	}

	*f = Frame{
		Type:          MessageType(head[1] >> 4),
		Flags:         MessageFlags(head[1] & 0x0F),
		Serialization: SerializationMethod(head[2] >> 4),
		Compression:   CompressionMethod(head[2] & 0x0F),
	}

	switch f.Flags & sequenceMask {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		seq, err := readUint32(r, "sequence")
		if err != nil {
			return err
		}
		f.Sequence = int32(seq)
	}

	if f.HasEvent() {
		event, err := readUint32(r, "event type")
		if err != nil {
			return err
		}
		f.Event = EventType(int32(event))

		if eventCarriesSessionID(f.Event) {
			session, err := readSized(r, "session id")
			if err != nil {
				return err
			}
			f.SessionID = string(session)
		}
		if eventCarriesConnectID(f.Event) {
			connect, err := readSized(r, "connect id")
			if err != nil {
				return err
			}
			f.ConnectID = string(connect)
		}
	}

	if f.Type == ErrorMessage {
		code, err := readUint32(r, "error code")
		if err != nil {
			return err
		}
		f.ErrorCode = code
	}

	payload, err := readSized(r, "payload")
	if err != nil {
		return err
	}
	f.Payload = payload
	return nil
}

func eventCarriesSessionID(event EventType) bool {
	switch event {
	case EventStartConnection, EventFinishConnection,
		EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return false
	default:
		return true
	}
}

func eventCarriesConnectID(event EventType) bool {
	switch event {
	case EventConnectionStarted, EventConnectionFailed, EventConnectionFinished:
		return true
	default:
		return false
	}
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeSized(buf *bytes.Buffer, data []byte) {
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
}

func readUint32(r io.Reader, field string) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readSized(r io.Reader, field string) ([]byte, error) {
	size, err := readUint32(r, field+" size")
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read %s (expected %d bytes): %w", field, size, err)
	}
	return data, nil
}
