package par2

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var ErrCorruptParity = errors.New("corrupt par2 data")

const headerSize = 64

var (
	packetMagic  = []byte("PAR2\x00PKT")
	typeFileDesc = []byte("PAR 2.0\x00FileDesc")
	typeMain     = []byte("PAR 2.0\x00Main\x00\x00\x00\x00")
)

// FileDesc body: file id, md5, md5 of the first 16k, length, name
const fileDescFixed = 16 + 16 + 16 + 8

// Entry is a file described by the recovery set.
type Entry struct {
	Name string
	Size uint64
}

// FileList is the ordered, de-duplicated set of names found in a par2 index.
type FileList []Entry

// Contains reports whether any entry name contains name.
// Matching is by substring, not equality.
func (l FileList) Contains(name string) bool {
	if name == "" {
		return false
	}
	for _, e := range l {
		if strings.Contains(e.Name, name) {
			return true
		}
	}
	return false
}

func (l FileList) Names() []string {
	names := make([]string, len(l))
	for i, e := range l {
		names[i] = e.Name
	}
	return names
}

// ParseFileNames scans the packets in buf and collects FileDesc names.
// The magic of every packet is checked before its length is trusted.
// sawMain reports whether a Main packet was encountered.
func ParseFileNames(buf []byte) (list FileList, sawMain bool, err error) {
	seen := make(map[string]struct{})
	off := 0

	for off < len(buf) {
		if len(buf)-off < headerSize {
			return list, sawMain, fmt.Errorf("%w: truncated header at offset %d", ErrCorruptParity, off)
		}

		hdr := buf[off : off+headerSize]
		if !bytes.Equal(hdr[:8], packetMagic) {
			return list, sawMain, fmt.Errorf("%w: bad magic at offset %d", ErrCorruptParity, off)
		}

		length := binary.LittleEndian.Uint64(hdr[8:16])
		if length < headerSize || length%4 != 0 || length > uint64(len(buf)-off) {
			return list, sawMain, fmt.Errorf("%w: invalid packet length %d at offset %d", ErrCorruptParity, length, off)
		}

		// hdr[16:32] md5, hdr[32:48] recovery set id
		packetType := hdr[48:64]
		body := buf[off+headerSize : off+int(length)]

		switch {
		case bytes.Equal(packetType, typeFileDesc):
			entry, err := parseFileDesc(body)
			if err != nil {
				return list, sawMain, fmt.Errorf("%w: offset %d: %v", ErrCorruptParity, off, err)
			}
			if _, dup := seen[entry.Name]; !dup && entry.Name != "" {
				seen[entry.Name] = struct{}{}
				list = append(list, entry)
			}
		case bytes.Equal(packetType, typeMain):
			sawMain = true
		}

		off += int(length)
	}

	return list, sawMain, nil
}

func parseFileDesc(body []byte) (Entry, error) {
	if len(body) < fileDescFixed {
		return Entry{}, fmt.Errorf("file description body too short (%d bytes)", len(body))
	}

	size := binary.LittleEndian.Uint64(body[48:56])
	name := strings.TrimRight(string(body[fileDescFixed:]), "\x00")

	return Entry{Name: name, Size: size}, nil
}
