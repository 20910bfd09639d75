// Package protocol implements the framing used on the Timer4 command link.
//
// A frame is laid out as
//
//	len seq payload... crc_hi crc_lo 0x7E
//
// where len counts the whole frame, seq carries MessageDest in its high
// nibble and a 4-bit sequence number in its low nibble, and the CRC covers
// len, seq and the payload. The payload is a run of VLQ-encoded integers.
package protocol

import "errors"

// Version is the link protocol version reported by the host tool
const Version = "0.1.0"

// Frame layout constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F
)

var (
	ErrFrameTooLarge = errors.New("frame payload too large")
	ErrBadCRC        = errors.New("frame CRC mismatch")
	ErrBadFrame      = errors.New("malformed frame")
)
