package sbus

const (
	FrameLength = 25
	NumChannels = 16

	// BufferSize leaves room for an over-length burst without running past the buffer.
	BufferSize = 2 * FrameLength

	frameHeader = 0x0F
	flagIndex   = 23
	channelBits = 11
	channelMask = 0x07FF
)

// Frame is one decoded radio frame.
type Frame struct {
	Channels [NumChannels]uint16
	Flag     byte
}

// Decode unpacks 16 little-endian 11-bit channels starting at byte 1 and the
// connection flag at byte 23. b must hold at least 24 bytes.
func Decode(b []byte) Frame {
	var f Frame
	_ = b[flagIndex]
	var acc uint32
	var bits uint
	i := 1
	for n := range f.Channels {
		for bits < channelBits {
			acc |= uint32(b[i]) << bits
			i++
			bits += 8
		}
		f.Channels[n] = uint16(acc & channelMask)
		acc >>= channelBits
		bits -= channelBits
	}
	f.Flag = b[flagIndex]
	return f
}

// Encode packs f the way Decode expects it.
func Encode(f Frame) [FrameLength]byte {
	var b [FrameLength]byte
	b[0] = frameHeader
	var acc uint32
	var bits uint
	i := 1
	for _, ch := range f.Channels {
		acc |= uint32(ch&channelMask) << bits
		bits += channelBits
		for bits >= 8 {
			b[i] = byte(acc)
			i++
			acc >>= 8
			bits -= 8
		}
	}
	b[flagIndex] = f.Flag
	return b
}
