package decoding

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

var ErrNotEncoded = errors.New("yenc block not found")
var ErrChecksumMismatch = errors.New("yenc checksum mismatch")

var (
	markerBegin = []byte("=ybegin")
	markerPart  = []byte("=ypart")
	markerEnd   = []byte("=yend")
)

type CRCResult int

const (
	CRCAbsent CRCResult = iota
	CRCOk
	CRCMismatch
)

func (r CRCResult) String() string {
	switch r {
	case CRCOk:
		return "ok"
	case CRCMismatch:
		return "mismatch"
	default:
		return "absent"
	}
}

// Meta holds the key=value pairs of a =ybegin, =ypart or =yend line.
type Meta map[string]string

// Int returns a numeric field and whether it was present and valid.
func (m Meta) Int(key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (m Meta) Name() (string, bool) {
	v, ok := m["name"]
	return v, ok && v != ""
}

// Part is one decoded article.
type Part struct {
	Begin Meta
	Part  Meta // nil for single part posts
	End   Meta
	Data  []byte
	CRC   CRCResult
}

// FileSize is the size of the whole file as announced by =ybegin.
func (p *Part) FileSize() (int64, bool) {
	return p.Begin.Int("size")
}

// Number is the part index, 1 for single part posts.
func (p *Part) Number() int64 {
	if n, ok := p.Begin.Int("part"); ok {
		return n
	}
	return 1
}

// block offsets inside an article body
type block struct {
	begin   int // start of the =ybegin line
	endLine int // start of the =yend line
	end     int // just past the =yend line
}

func locate(body []byte) (block, error) {
	begin := lineStart(body, markerBegin, 0)
	if begin < 0 {
		return block{}, fmt.Errorf("%w: missing =ybegin", ErrNotEncoded)
	}

	endLine := lineStart(body, markerEnd, begin+len(markerBegin))
	if endLine < 0 {
		return block{}, fmt.Errorf("%w: missing =yend", ErrNotEncoded)
	}

	end := len(body)
	if nl := bytes.IndexByte(body[endLine:], '\n'); nl >= 0 {
		end = endLine + nl + 1
	}

	return block{begin: begin, endLine: endLine, end: end}, nil
}

// lineStart finds marker at the beginning of a line, searching from off.
func lineStart(body, marker []byte, off int) int {
	for off <= len(body) {
		i := bytes.Index(body[off:], marker)
		if i < 0 {
			return -1
		}
		pos := off + i
		if pos == 0 || body[pos-1] == '\n' {
			return pos
		}
		off = pos + 1
	}
	return -1
}

// LocateBlock returns the offsets of the encoded block, from the start of
// the =ybegin line to the end of the =yend line.
func LocateBlock(body []byte) (start, end int, err error) {
	b, err := locate(body)
	if err != nil {
		return 0, 0, err
	}
	return b.begin, b.end, nil
}

// ParseMeta tokenizes a marker line. Values may be quoted. The name field
// always runs to the end of the line since it may contain spaces.
func ParseMeta(line []byte) Meta {
	meta := make(Meta)
	s := strings.TrimRight(string(line), "\r\n")

	// drop the marker keyword
	if strings.HasPrefix(s, "=y") {
		if i := strings.IndexAny(s, " \t"); i >= 0 {
			s = s[i:]
		} else {
			return meta
		}
	}

	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return meta
		}

		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return meta
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = s[eq+1:]

		if key == "name" {
			meta[key] = unquote(strings.TrimSpace(s))
			return meta
		}

		var val string
		if strings.HasPrefix(s, "\"") {
			closeAt := strings.IndexByte(s[1:], '"')
			if closeAt < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:closeAt+1], s[closeAt+2:]
			}
		} else if sp := strings.IndexAny(s, " \t"); sp >= 0 {
			val, s = s[:sp], s[sp:]
		} else {
			val, s = s, ""
		}
		meta[key] = val
	}
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// Decode reverses the yEnc byte transform. Line breaks are ignored and
// '=' escapes the following byte.
func Decode(data []byte) []byte {
	out := make([]byte, 0, len(data))
	escaped := false

	for _, b := range data {
		switch {
		case escaped:
			out = append(out, b-64-42)
			escaped = false
		case b == '=':
			escaped = true
		case b == '\r' || b == '\n':
			// line breaks are not data
		default:
			out = append(out, b-42)
		}
	}
	return out
}

// VerifyChecksum compares the IEEE CRC32 of decoded against the =yend line.
// pcrc32 is preferred. crc32 is only used for single part posts, on
// multipart posts it covers the whole file.
func VerifyChecksum(decoded []byte, end Meta) CRCResult {
	v, ok := end["pcrc32"]
	if !ok {
		if _, multipart := end["part"]; !multipart {
			v, ok = end["crc32"]
		}
	}
	if !ok {
		return CRCAbsent
	}

	expected, err := strconv.ParseUint(strings.TrimSpace(v), 16, 32)
	if err != nil {
		return CRCMismatch
	}

	if crc32.ChecksumIEEE(decoded) != uint32(expected) {
		return CRCMismatch
	}
	return CRCOk
}

// DecodeArticle decodes the single yEnc block of an article body.
// On a checksum mismatch the decoded part is still returned alongside
// ErrChecksumMismatch.
func DecodeArticle(body []byte) (*Part, error) {
	b, err := locate(body)
	if err != nil {
		return nil, err
	}

	beginLine, rest, _ := bytes.Cut(body[b.begin:b.endLine], []byte("\n"))
	p := &Part{
		Begin: ParseMeta(beginLine),
		End:   ParseMeta(body[b.endLine:b.end]),
	}

	if bytes.HasPrefix(rest, markerPart) {
		var partLine []byte
		partLine, rest, _ = bytes.Cut(rest, []byte("\n"))
		p.Part = ParseMeta(partLine)
	}

	p.Data = Decode(rest)
	p.CRC = VerifyChecksum(p.Data, p.End)

	if p.CRC == CRCMismatch {
		return p, fmt.Errorf("%w: part %d, %d bytes", ErrChecksumMismatch, p.Number(), len(p.Data))
	}
	return p, nil
}
