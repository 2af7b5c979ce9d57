package decoding

import (
	"bytes"
	"fmt"
	"hash/crc32"
)

const DefaultLineLength = 128

// PartInfo places an encoded chunk inside a multipart post.
type PartInfo struct {
	Number   int
	Total    int
	Offset   int64 // zero based offset of the chunk within the file
	FileSize int64
}

// Encode produces a single part yEnc block for data.
func Encode(data []byte, name string, lineLength int) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=ybegin line=%d size=%d name=%s\r\n", normLine(lineLength), len(data), name)
	writeLines(&buf, data, normLine(lineLength))
	fmt.Fprintf(&buf, "=yend size=%d crc32=%08x\r\n", len(data), crc32.ChecksumIEEE(data))
	return buf.Bytes()
}

// EncodePart produces one part of a multipart yEnc post, with a part checksum.
func EncodePart(data []byte, name string, info PartInfo, lineLength int) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=ybegin part=%d total=%d line=%d size=%d name=%s\r\n",
		info.Number, info.Total, normLine(lineLength), info.FileSize, name)
	fmt.Fprintf(&buf, "=ypart begin=%d end=%d\r\n", info.Offset+1, info.Offset+int64(len(data)))
	writeLines(&buf, data, normLine(lineLength))
	fmt.Fprintf(&buf, "=yend size=%d part=%d pcrc32=%08x\r\n", len(data), info.Number, crc32.ChecksumIEEE(data))
	return buf.Bytes()
}

func normLine(n int) int {
	if n <= 0 {
		return DefaultLineLength
	}
	return n
}

func writeLines(buf *bytes.Buffer, data []byte, lineLength int) {
	col := 0
	for _, b := range data {
		o := b + 42
		switch o {
		case 0, '\n', '\r', '=':
			buf.WriteByte('=')
			buf.WriteByte(o + 64)
			col += 2
		default:
			buf.WriteByte(o)
			col++
		}

		if col >= lineLength {
			buf.WriteString("\r\n")
			col = 0
		}
	}
	if col > 0 {
		buf.WriteString("\r\n")
	}
}
