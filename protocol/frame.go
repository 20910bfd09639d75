package protocol

// Frame is one decoded message block.
type Frame struct {
	Seq     uint8 // low nibble only
	Payload []byte
}

// EncodeFrame builds a complete frame around payload.
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MessagePayloadMax {
		return nil, ErrFrameTooLarge
	}
	n := len(payload) + MessageLengthMin
	msg := make([]byte, 0, n)
	msg = append(msg, byte(n), MessageDest|seq&MessageSeqMask)
	msg = append(msg, payload...)
	crc := CRC16(msg)
	return append(msg, byte(crc>>8), byte(crc), MessageValueSync), nil
}

// Decoder reassembles frames from a byte stream. After a corrupt frame it
// drops input up to the next sync byte.
type Decoder struct {
	buf     []byte
	synced  bool
	dropped int
}

// NewDecoder creates a Decoder that starts synchronized.
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Write appends received bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Dropped returns how many corrupt frames have been discarded.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Next returns the next complete frame, or false when more input is needed.
func (d *Decoder) Next() (Frame, bool) {
	for len(d.buf) > 0 {
		if !d.synced {
			i := indexSync(d.buf)
			if i < 0 {
				d.buf = d.buf[:0]
				return Frame{}, false
			}
			d.buf = d.buf[i+1:]
			d.synced = true
			continue
		}
		if d.buf[0] == MessageValueSync {
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < MessageLengthMin {
			return Frame{}, false
		}
		n := int(d.buf[MessagePositionLen])
		seq := d.buf[MessagePositionSeq]
		if n < MessageLengthMin || n > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}
		if len(d.buf) < n {
			return Frame{}, false
		}
		f, err := parseFrame(d.buf[:n])
		if err != nil {
			d.desync()
			continue
		}
		d.buf = d.buf[n:]
		return f, true
	}
	return Frame{}, false
}

func (d *Decoder) desync() {
	d.synced = false
	d.dropped++
	d.buf = d.buf[1:]
}

// parseFrame validates one complete frame.
func parseFrame(msg []byte) (Frame, error) {
	n := len(msg)
	if msg[n-1] != MessageValueSync {
		return Frame{}, ErrBadFrame
	}
	want := uint16(msg[n-3])<<8 | uint16(msg[n-2])
	if CRC16(msg[:n-MessageTrailerSize]) != want {
		return Frame{}, ErrBadCRC
	}
	payload := make([]byte, n-MessageLengthMin)
	copy(payload, msg[MessageHeaderSize:n-MessageTrailerSize])
	return Frame{Seq: msg[MessagePositionSeq] & MessageSeqMask, Payload: payload}, nil
}

// DecodeFrame parses exactly one frame.
func DecodeFrame(msg []byte) (Frame, error) {
	if len(msg) < MessageLengthMin || int(msg[MessagePositionLen]) != len(msg) {
		return Frame{}, ErrBadFrame
	}
	return parseFrame(msg)
}

func indexSync(b []byte) int {
	for i, c := range b {
		if c == MessageValueSync {
			return i
		}
	}
	return -1
}
