package rlogin

// defaultPort is the standard Rlogin daemon port (spec.md §4.4).
const defaultPort = 513

// highWaterMark is the write-side backlog threshold above which the read
// side is frozen (spec.md §5 "Backpressure").
const highWaterMark = 4096

// encodeStartup builds the Rlogin startup sequence: four NUL-terminated
// fields with no other separators (spec.md §4.4, wire format in §6):
//
//	0x00 <local-username> 0x00 <remote-username> 0x00 <termtype>/<decimal-digits-of-termspeed> 0x00
//
// Only the leading run of decimal digits of termSpeed is sent (spec.md §6):
// a conventional "38400,38400" input/output pair is truncated to "38400".
func encodeStartup(localUser, remoteUser, termType, termSpeed string) []byte {
	var buf []byte
	buf = append(buf, 0x00)
	buf = append(buf, localUser...)
	buf = append(buf, 0x00)
	buf = append(buf, remoteUser...)
	buf = append(buf, 0x00)
	buf = append(buf, termType...)
	buf = append(buf, '/')
	buf = append(buf, leadingDigits(termSpeed)...)
	buf = append(buf, 0x00)
	return buf
}

// leadingDigits returns the longest prefix of s consisting of ASCII
// decimal digits.
func leadingDigits(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return s[:i]
		}
	}
	return s
}

// encodeWindowSize builds the twelve-byte window-size control frame
// (spec.md §4.4 "size"): FF FF 73 73 HH HL WH WL xp xp yp yp, height and
// width big-endian, pixel dimensions sent as zero.
func encodeWindowSize(width, height int) []byte {
	frame := make([]byte, 12)
	frame[0], frame[1], frame[2], frame[3] = 0xFF, 0xFF, 's', 's'
	frame[4] = byte(height >> 8)
	frame[5] = byte(height)
	frame[6] = byte(width >> 8)
	frame[7] = byte(width)
	// frame[8:12] are the pixel width/height, always zero.
	return frame
}

// urgentByte values (spec.md §4.4.1 / GLOSSARY "Urgent data").
const (
	urgentWindowSizeEnable byte = 0x80
	urgentFlush            byte = 0x02
	urgentStopOutput       byte = 0x10
	urgentStartOutput      byte = 0x20
)
