package extraction

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

var (
	rar5Header  = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00, 0xAA}
	sevenHeader = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C, 0x00, 0x04}
	zipHeader   = []byte{0x50, 0x4B, 0x03, 0x04, 0x14}
)

func touch(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindSets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"show.part01.rar", "show.part02.rar", "show.part03.rar",
		"old.rar", "old.r00", "old.r01",
		"pics.7z.001", "pics.7z.002",
		"single.7z",
		"docs.zip", "docs.z01",
		"orphan.r00",
		"movie.mkv", "movie.par2",
	} {
		touch(t, dir, name, []byte("x"))
	}
	os.Mkdir(filepath.Join(dir, "nested.rar"), 0755)

	sets, err := FindSets(dir)
	if err != nil {
		t.Fatalf("FindSets: %v", err)
	}

	got := make(map[string][]string)
	for _, s := range sets {
		var vols []string
		for _, v := range s.Volumes {
			vols = append(vols, filepath.Base(v))
		}
		got[filepath.Base(s.First)] = vols
	}

	want := map[string][]string{
		"show.part01.rar": {"show.part01.rar", "show.part02.rar", "show.part03.rar"},
		"old.rar":         {"old.r00", "old.r01", "old.rar"},
		"pics.7z.001":     {"pics.7z.001", "pics.7z.002"},
		"single.7z":       {"single.7z"},
		"docs.zip":        {"docs.z01", "docs.zip"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sets =\n%v\nwant\n%v", got, want)
	}

	kinds := map[string]Kind{}
	for _, s := range sets {
		kinds[filepath.Base(s.First)] = s.Kind
	}
	if kinds["old.rar"] != KindRAR || kinds["pics.7z.001"] != KindSevenZip || kinds["docs.zip"] != KindZIP {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestCanExtract(t *testing.T) {
	dir := t.TempDir()
	unrar := &CLIUnrar{}
	sevenZ := &CLI7z{}
	unzip := &CLIUnzip{}

	tests := []struct {
		name string
		data []byte
		ext  Extractor
		want bool
	}{
		{"a.rar", rar5Header, unrar, true},
		{"a.part01.rar", rar5Header, unrar, true},
		{"a.part1.rar", rar5Header, unrar, true},
		{"a.part02.rar", rar5Header, unrar, false},
		{"fake.rar", []byte("not a rar at all"), unrar, false},
		{"empty.rar", nil, unrar, false},
		{"a.7z", sevenHeader, sevenZ, true},
		{"b.7z.001", sevenHeader, sevenZ, true},
		{"b.7z.002", sevenHeader, sevenZ, false},
		{"a.zip", zipHeader, unzip, true},
		{"a.zip.txt", zipHeader, unzip, false},
		{"a.mkv", rar5Header, unrar, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := touch(t, dir, tt.name, tt.data)
			got, err := tt.ext.CanExtract(path)
			if err != nil {
				t.Fatalf("CanExtract: %v", err)
			}
			if got != tt.want {
				t.Fatalf("%s CanExtract(%s) = %v, want %v", tt.ext.Name(), tt.name, got, tt.want)
			}
		})
	}
}

// fakeUnrar mimics "unrar x -o+ -y -kb -p<pw> archive workdir/".
func fakeUnrar(t *testing.T, exitCode string) *CLIUnrar {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "unrar")
	script := "#!/bin/sh\n" +
		"out=\"$7\"\n" +
		"echo \"$5\" > \"$out/password.txt\"\n" +
		"mkdir -p \"$out/sub\"\n" +
		"echo movie > \"$out/sub/movie.mkv\"\n" +
		"exit " + exitCode + "\n"
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	u, err := NewCLIUnrar(bin)
	if err != nil {
		t.Fatalf("NewCLIUnrar: %v", err)
	}
	return u
}

func TestUnrarExtractFlattens(t *testing.T) {
	dest := t.TempDir()
	archive := touch(t, dest, "show.part01.rar", rar5Header)
	u := fakeUnrar(t, "0")

	paths, err := u.Extract(context.Background(), archive, dest, "hunter2")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"movie.mkv", "password.txt"}) {
		t.Fatalf("extracted = %v", names)
	}

	pw, err := os.ReadFile(filepath.Join(dest, "password.txt"))
	if err != nil || string(pw) != "-phunter2\n" {
		t.Fatalf("password arg = %q, %v", pw, err)
	}

	if _, err := os.Stat(filepath.Join(dest, "_extractedshow.part01.rar")); !os.IsNotExist(err) {
		t.Fatal("work directory left behind")
	}
}

func TestUnrarWithoutPassword(t *testing.T) {
	dest := t.TempDir()
	archive := touch(t, dest, "a.rar", rar5Header)

	if _, err := fakeUnrar(t, "0").Extract(context.Background(), archive, dest, ""); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	pw, _ := os.ReadFile(filepath.Join(dest, "password.txt"))
	if string(pw) != "-p-\n" {
		t.Fatalf("password arg = %q", pw)
	}
}

func TestExtractNonZeroExitFails(t *testing.T) {
	dest := t.TempDir()
	archive := touch(t, dest, "a.rar", rar5Header)

	if _, err := fakeUnrar(t, "3").Extract(context.Background(), archive, dest, ""); err == nil {
		t.Fatal("non-zero exit reported success")
	}
	if _, err := os.Stat(filepath.Join(dest, "movie.mkv")); !os.IsNotExist(err) {
		t.Fatal("failed extraction must not move files")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "a", []byte("payload"))
	dst := filepath.Join(dir, "b")

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("moveFile: %v", err)
	}
	if data, err := os.ReadFile(dst); err != nil || string(data) != "payload" {
		t.Fatalf("dst = %q, %v", data, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source still present")
	}

	// the copy path is what runs across filesystems
	src = touch(t, dir, "c", []byte("copied"))
	if err := moveCrossDevice(src, filepath.Join(dir, "d")); err != nil {
		t.Fatalf("moveCrossDevice: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "d")); string(data) != "copied" {
		t.Fatalf("copy = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, ".d.tmp")); !os.IsNotExist(err) {
		t.Fatal("temporary left behind")
	}
}
