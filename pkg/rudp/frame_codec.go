package rudp

import (
	"encoding/binary"
	"errors"
)

// errMalformedFrame is returned internally by decode helpers; callers at
// the half-connection boundary convert it into a silent drop, never a
// surfaced error (spec.md §7: malformed frames are dropped, not reported).
var errMalformedFrame = errors.New("rudp: malformed frame")

// appendUint16/appendUint32 append a big-endian integer to buf, following
// the teacher's BitStream.WriteUint16/WriteUint32 helpers in
// source/protocol/raknet.go, generalized into free functions operating on
// a growable []byte rather than a stateful cursor type.
func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) remaining() int { return len(r.data) - r.pos }

func (r *byteReader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, errMalformedFrame
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, errMalformedFrame
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) readUint16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// finalizeFrame appends the 4-byte CRC trailer over everything written so
// far.
func finalizeFrame(buf []byte) []byte {
	return appendUint32(buf, frameCRC(buf))
}

// verifyAndStripCRC checks the trailing 4-byte CRC of data, returning the
// frame body (type byte onward, trailer removed) on success. Any failure —
// too short, bad CRC — is reported so the caller can silently drop the
// frame per spec.md §7.
func verifyAndStripCRC(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errMalformedFrame
	}
	body := data[:len(data)-4]
	trailer := binary.BigEndian.Uint32(data[len(data)-4:])
	if frameCRC(body) != trailer {
		return nil, errMalformedFrame
	}
	return body, nil
}

// EncodeDataFrame serializes a Data frame per spec.md §4.G/§6: type byte,
// 4-byte frame sequence ID, 1-byte nonce, 2-byte datagram count, then each
// datagram's variable-length header and payload, trailed by the CRC.
func EncodeDataFrame(f DataFrame) []byte {
	buf := make([]byte, 0, MaxFrameSize)
	buf = append(buf, byte(FrameData))
	buf = appendUint32(buf, f.SequenceID)
	buf = append(buf, f.Nonce&1)
	buf = appendUint16(buf, uint16(len(f.Datagrams)))
	for _, d := range f.Datagrams {
		buf = appendDatagram(buf, d)
	}
	return finalizeFrame(buf)
}

func appendDatagram(buf []byte, d Datagram) []byte {
	channelByte := d.Channel
	if d.multiFragment() {
		channelByte |= 0x80
	}
	buf = append(buf, channelByte)
	buf = appendUint32(buf, d.SequenceID)
	buf = appendUint16(buf, d.WindowParentLead)
	buf = appendUint16(buf, d.ChannelParentLead)
	if d.multiFragment() {
		buf = appendUint16(buf, d.LastFragmentID)
		buf = appendUint16(buf, d.FragmentID)
	}
	buf = appendUint16(buf, uint16(len(d.Data)))
	buf = append(buf, d.Data...)
	return buf
}

func readDatagram(r *byteReader) (Datagram, error) {
	channelByte, err := r.readByte()
	if err != nil {
		return Datagram{}, err
	}
	multi := channelByte&0x80 != 0
	d := Datagram{Channel: channelByte &^ 0x80}

	if d.SequenceID, err = r.readUint32(); err != nil {
		return Datagram{}, err
	}
	if d.WindowParentLead, err = r.readUint16(); err != nil {
		return Datagram{}, err
	}
	if d.ChannelParentLead, err = r.readUint16(); err != nil {
		return Datagram{}, err
	}
	if multi {
		if d.LastFragmentID, err = r.readUint16(); err != nil {
			return Datagram{}, err
		}
		if d.FragmentID, err = r.readUint16(); err != nil {
			return Datagram{}, err
		}
	}
	length, err := r.readUint16()
	if err != nil {
		return Datagram{}, err
	}
	payload, err := r.readBytes(int(length))
	if err != nil {
		return Datagram{}, err
	}
	d.Data = append([]byte(nil), payload...)
	return d, nil
}

// DecodeDataFrame parses a Data frame body whose CRC trailer the caller has
// already stripped. body still includes the leading type byte, which is
// skipped.
func DecodeDataFrame(body []byte) (DataFrame, error) {
	r := &byteReader{data: body, pos: 1} // skip type byte
	var f DataFrame
	var err error
	if f.SequenceID, err = r.readUint32(); err != nil {
		return DataFrame{}, err
	}
	nonceByte, err := r.readByte()
	if err != nil {
		return DataFrame{}, err
	}
	f.Nonce = nonceByte & 1
	count, err := r.readUint16()
	if err != nil {
		return DataFrame{}, err
	}
	f.Datagrams = make([]Datagram, 0, count)
	for i := 0; i < int(count); i++ {
		d, err := readDatagram(r)
		if err != nil {
			return DataFrame{}, err
		}
		f.Datagrams = append(f.Datagrams, d)
	}
	return f, nil
}

// EncodeAckFrame serializes an Ack frame per spec.md §4.G/§6.
func EncodeAckFrame(f AckFrame) []byte {
	buf := make([]byte, 0, MaxFrameSize)
	buf = append(buf, byte(FrameAck))
	buf = appendUint32(buf, f.FrameWindowBase)
	buf = appendUint32(buf, f.PacketWindowBase)
	buf = appendUint16(buf, uint16(len(f.Groups)))
	for _, g := range f.Groups {
		buf = appendUint32(buf, g.BaseID)
		buf = appendUint32(buf, g.Bitfield)
		buf = append(buf, g.Nonce&1)
	}
	return finalizeFrame(buf)
}

// DecodeAckFrame parses an Ack frame body (leading type byte included).
func DecodeAckFrame(body []byte) (AckFrame, error) {
	r := &byteReader{data: body, pos: 1}
	var f AckFrame
	var err error
	if f.FrameWindowBase, err = r.readUint32(); err != nil {
		return AckFrame{}, err
	}
	if f.PacketWindowBase, err = r.readUint32(); err != nil {
		return AckFrame{}, err
	}
	count, err := r.readUint16()
	if err != nil {
		return AckFrame{}, err
	}
	f.Groups = make([]AckGroup, 0, count)
	for i := 0; i < int(count); i++ {
		var g AckGroup
		if g.BaseID, err = r.readUint32(); err != nil {
			return AckFrame{}, err
		}
		if g.Bitfield, err = r.readUint32(); err != nil {
			return AckFrame{}, err
		}
		nonceByte, err := r.readByte()
		if err != nil {
			return AckFrame{}, err
		}
		g.Nonce = nonceByte & 1
		f.Groups = append(f.Groups, g)
	}
	return f, nil
}

// ackGroupWireSize is the fixed size of one AckGroup record on the wire.
const ackGroupWireSize = 9

// EncodeSyncFrame serializes a Sync frame: type byte, 1-byte presence
// flags, then the present fields, trailed by CRC.
func EncodeSyncFrame(f SyncFrame) []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, byte(FrameSync))
	var flags byte
	if f.HasNextFrameID {
		flags |= 0x01
	}
	if f.HasNextPacketID {
		flags |= 0x02
	}
	buf = append(buf, flags)
	if f.HasNextFrameID {
		buf = appendUint32(buf, f.NextFrameID)
	}
	if f.HasNextPacketID {
		buf = appendUint32(buf, f.NextPacketID)
	}
	return finalizeFrame(buf)
}

// DecodeSyncFrame parses a Sync frame body (leading type byte included).
func DecodeSyncFrame(body []byte) (SyncFrame, error) {
	r := &byteReader{data: body, pos: 1}
	flags, err := r.readByte()
	if err != nil {
		return SyncFrame{}, err
	}
	var f SyncFrame
	if flags&0x01 != 0 {
		f.HasNextFrameID = true
		if f.NextFrameID, err = r.readUint32(); err != nil {
			return SyncFrame{}, err
		}
	}
	if flags&0x02 != 0 {
		f.HasNextPacketID = true
		if f.NextPacketID, err = r.readUint32(); err != nil {
			return SyncFrame{}, err
		}
	}
	return f, nil
}

// DecodeFrameType verifies the CRC trailer and returns the frame's type
// byte plus its body (type byte included, trailer stripped). Any CRC or
// length failure is reported so the caller drops the frame silently.
func DecodeFrameType(data []byte) (FrameType, []byte, error) {
	body, err := verifyAndStripCRC(data)
	if err != nil {
		return 0, nil, err
	}
	if len(body) < 1 {
		return 0, nil, errMalformedFrame
	}
	return FrameType(body[0]), body, nil
}
