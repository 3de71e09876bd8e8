// Package gtp encodes and decodes the GTPv1-U Echo Request / Echo Response
// headers used to probe a GTP-U peer.
package gtp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// MinHeaderLength is the mandatory part of every GTPv1 header
	MinHeaderLength = 8
	// EchoHeaderLength is the header length with the optional sequence fields
	EchoHeaderLength = 12

	MessageTypeEchoRequest  uint8 = 1
	MessageTypeEchoResponse uint8 = 2

	// DefaultPort is the IANA assigned GTP-U port
	DefaultPort = 2152

	gtpVersion = 1

	// Header flags in byte 0 that add the optional 4 bytes
	flagExtension = 0x04
	flagSequence  = 0x02
	flagNPDU      = 0x01
	flagsOptional = flagExtension | flagSequence | flagNPDU

	// Extension header lengths count 4 byte units
	extensionUnit = 4
)

// ErrDecode is returned for datagrams that are not a usable echo message
var ErrDecode = errors.New("gtp: cannot decode echo message")

// EchoHeader holds the fields of a decoded Echo Request or Response header
type EchoHeader struct {
	Version     uint8
	MessageType uint8
	Length      uint16
	TEID        uint32
	// Sequence is only valid when HasSequence is true
	Sequence    uint16
	HasSequence bool
}

// EncodeEchoRequest returns the 12 byte Echo Request header carrying seq.
func EncodeEchoRequest(seq uint16) []byte {
	return encode(MessageTypeEchoRequest, seq, true)
}

// EncodeEchoResponse returns a 12 byte Echo Response header carrying seq.
func EncodeEchoResponse(seq uint16) []byte {
	return encode(MessageTypeEchoResponse, seq, true)
}

// EncodeEchoResponseMinimal returns an 8 byte Echo Response without the
// optional sequence fields, as sent by some non-conformant peers.
func EncodeEchoResponseMinimal() []byte {
	return encode(MessageTypeEchoResponse, 0, false)
}

func encode(msgType uint8, seq uint16, withSeq bool) []byte {
	hdr := &layers.GTPv1U{
		Version:            gtpVersion,
		ProtocolType:       1,
		SequenceNumberFlag: withSeq,
		MessageType:        msgType,
		SequenceNumber:     seq,
	}
	// The length field only counts what follows the mandatory header
	if withSeq {
		hdr.MessageLength = EchoHeaderLength - MinHeaderLength
	}

	buf := gopacket.NewSerializeBufferExpectedSize(MinHeaderLength, EchoHeaderLength-MinHeaderLength)
	if err := hdr.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		// Only fails on allocation, which would already have panicked
		panic(fmt.Sprintf("gtp: serialize echo header: %v", err))
	}
	return buf.Bytes()
}

// DecodeEchoResponse parses b as an Echo Response header. The returned
// error wraps ErrDecode.
func DecodeEchoResponse(b []byte) (EchoHeader, error) {
	return decode(b, MessageTypeEchoResponse)
}

// DecodeEchoRequest parses b as an Echo Request header.
func DecodeEchoRequest(b []byte) (EchoHeader, error) {
	return decode(b, MessageTypeEchoRequest)
}

func decode(b []byte, wantType uint8) (EchoHeader, error) {
	if len(b) < MinHeaderLength {
		return EchoHeader{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrDecode, len(b), MinHeaderLength)
	}

	if msgLen := int(binary.BigEndian.Uint16(b[2:4])); MinHeaderLength+msgLen > len(b) {
		return EchoHeader{}, fmt.Errorf("%w: length field %d exceeds %d byte datagram", ErrDecode, msgLen, len(b))
	}
	if err := checkOptionalHeader(b); err != nil {
		return EchoHeader{}, err
	}

	var hdr layers.GTPv1U
	if err := hdr.DecodeFromBytes(b, gopacket.NilDecodeFeedback); err != nil {
		return EchoHeader{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if hdr.MessageType != wantType {
		return EchoHeader{}, fmt.Errorf("%w: message type %d", ErrDecode, hdr.MessageType)
	}

	return EchoHeader{
		Version:     hdr.Version,
		MessageType: hdr.MessageType,
		Length:      hdr.MessageLength,
		TEID:        hdr.TEID,
		Sequence:    hdr.SequenceNumber,
		HasSequence: hdr.SequenceNumberFlag,
	}, nil
}

// checkOptionalHeader verifies that the optional header fields and the
// extension header chain lie within b. gopacket indexes into the chain
// without bounds checks, so it must only see datagrams that pass.
func checkOptionalHeader(b []byte) error {
	if b[0]&flagsOptional == 0 {
		return nil
	}
	if len(b) < EchoHeaderLength {
		return fmt.Errorf("%w: optional header fields need %d bytes, have %d", ErrDecode, EchoHeaderLength, len(b))
	}
	if b[0]&flagExtension == 0 {
		return nil
	}

	// Each extension is a length octet in 4 byte units followed by its
	// content; its last octet is the type of the next extension
	for i := EchoHeaderLength; ; {
		if i >= len(b) {
			return fmt.Errorf("%w: extension header at offset %d beyond %d byte datagram", ErrDecode, i, len(b))
		}
		n := int(b[i])
		if n == 0 {
			return fmt.Errorf("%w: zero length extension header at offset %d", ErrDecode, i)
		}
		end := i + n*extensionUnit
		if end > len(b) {
			return fmt.Errorf("%w: extension header at offset %d ends at %d, beyond %d byte datagram", ErrDecode, i, end, len(b))
		}
		if b[end-1] == 0 {
			return nil
		}
		i = end
	}
}
