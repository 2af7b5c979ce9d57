package par2

import (
	"encoding/binary"
	"errors"
	"testing"
)

func packet(typ []byte, body []byte) []byte {
	for len(body)%4 != 0 {
		body = append(body, 0)
	}

	p := make([]byte, headerSize, headerSize+len(body))
	copy(p, packetMagic)
	binary.LittleEndian.PutUint64(p[8:16], uint64(headerSize+len(body)))
	copy(p[48:64], typ)
	return append(p, body...)
}

func fileDesc(name string, size uint64) []byte {
	body := make([]byte, fileDescFixed)
	binary.LittleEndian.PutUint64(body[48:56], size)
	return packet(typeFileDesc, append(body, name...))
}

func TestParseFileNames(t *testing.T) {
	var buf []byte
	buf = append(buf, packet(typeMain, make([]byte, 12))...)
	buf = append(buf, fileDesc("movie.mkv.par2", 1000)...)
	buf = append(buf, fileDesc("movie.mkv", 7_000_000)...)
	buf = append(buf, fileDesc("movie.mkv", 7_000_000)...) // repeated in every volume
	buf = append(buf, packet([]byte("PAR 2.0\x00IFSC\x00\x00\x00\x00"), make([]byte, 40))...)

	list, sawMain, err := ParseFileNames(buf)
	if err != nil {
		t.Fatalf("ParseFileNames: %v", err)
	}
	if !sawMain {
		t.Error("main packet not reported")
	}
	if len(list) != 2 || list[0].Name != "movie.mkv.par2" || list[1].Name != "movie.mkv" {
		t.Fatalf("list = %+v", list)
	}
	if list[1].Size != 7_000_000 {
		t.Errorf("size = %d", list[1].Size)
	}
}

func TestParseFileNamesNoMain(t *testing.T) {
	list, sawMain, err := ParseFileNames(fileDesc("a.rar", 10))
	if err != nil || sawMain || len(list) != 1 {
		t.Fatalf("list=%v sawMain=%v err=%v", list, sawMain, err)
	}
}

func TestParseFileNamesCorrupt(t *testing.T) {
	good := fileDesc("a.rar", 10)

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'

	shortLen := append([]byte(nil), good...)
	binary.LittleEndian.PutUint64(shortLen[8:16], 32)

	oddLen := append([]byte(nil), good...)
	binary.LittleEndian.PutUint64(oddLen[8:16], uint64(len(good)-2))

	hugeLen := append([]byte(nil), good...)
	binary.LittleEndian.PutUint64(hugeLen[8:16], 1<<40)

	tests := map[string][]byte{
		"bad magic":        badMagic,
		"length too small": shortLen,
		"length unaligned": oddLen,
		"length overflow":  hugeLen,
		"truncated header": good[:40],
		"trailing garbage": append(append([]byte(nil), good...), []byte("JUNKJUNK")...),
		"short body":       packet(typeFileDesc, make([]byte, 20)),
	}

	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseFileNames(buf); !errors.Is(err, ErrCorruptParity) {
				t.Fatalf("err = %v, want ErrCorruptParity", err)
			}
		})
	}
}

func TestParseFileNamesKeepsEntriesBeforeCorruption(t *testing.T) {
	buf := append(fileDesc("first.bin", 1), []byte("PAR2\x00BAD")...)
	buf = append(buf, make([]byte, 56)...)

	list, _, err := ParseFileNames(buf)
	if !errors.Is(err, ErrCorruptParity) {
		t.Fatalf("err = %v", err)
	}
	if len(list) != 1 || list[0].Name != "first.bin" {
		t.Fatalf("list = %v", list)
	}
}

func TestContains(t *testing.T) {
	list := FileList{{Name: "movie.mkv.par2"}, {Name: "movie.mkv"}}

	tests := map[string]bool{
		"movie.mkv": true,
		"movie":     true, // substring match
		"random123": false,
		"":          false,
		"MOVIE.mkv": false,
	}
	for name, want := range tests {
		if got := list.Contains(name); got != want {
			t.Errorf("Contains(%q) = %v, want %v", name, got, want)
		}
	}
}
