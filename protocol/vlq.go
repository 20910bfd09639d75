package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// AppendVLQInt appends the Klipper VLQ encoding of v to dst. Values in
// [-32, 96) take one byte; each further byte adds seven bits.
func AppendVLQInt(dst []byte, v int32) []byte {
	if v < -(1<<26) || v >= 3<<26 {
		dst = append(dst, byte((v>>28)&0x7F)|0x80)
	}
	if v < -(1<<19) || v >= 3<<19 {
		dst = append(dst, byte((v>>21)&0x7F)|0x80)
	}
	if v < -(1<<12) || v >= 3<<12 {
		dst = append(dst, byte((v>>14)&0x7F)|0x80)
	}
	if v < -(1<<5) || v >= 3<<5 {
		dst = append(dst, byte((v>>7)&0x7F)|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// AppendVLQUint appends an unsigned value; it round-trips through the
// signed encoding.
func AppendVLQUint(dst []byte, v uint32) []byte {
	return AppendVLQInt(dst, int32(v))
}

// DecodeVLQInt decodes one VLQ integer and advances data past it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}
	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i > 4 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		i++
		v = v<<7 | c&0x7F
	}
	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes one unsigned VLQ integer and advances data past it.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}
