package fileio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCheckRelative(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"out.json", true},
		{"vars/out.json", true},
		{"./vars/out.json", true},
		{"dots..in..name.json", true},
		{"", false},
		{".", false},
		{"../x", false},
		{"a/../../x", false},
		{`a\..\x`, false},
		{"/etc/passwd", false},
		{`\windows`, false},
		{"~/x", false},
	}
	for _, tt := range tests {
		err := CheckRelative(tt.path)
		if tt.ok && err != nil {
			t.Errorf("CheckRelative(%q) = %v", tt.path, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnsafePath) {
			t.Errorf("CheckRelative(%q) = %v, want ErrUnsafePath", tt.path, err)
		}
	}
}

func TestWriteLockedConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "out.txt")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte{byte('a' + i), byte('a' + i), byte('a' + i)}
			if err := WriteFileLocked(path, payload); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	data, err := ReadFileLocked(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 || data[0] != data[1] || data[1] != data[2] {
		t.Fatalf("interleaved write: %q", data)
	}
}

func TestWriteLockedFailureKeepsOldContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := WriteFileLocked(path, []byte("old")); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := WriteLocked(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteLocked() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Fatalf("content = %q, want old", data)
	}
}

func TestNextName(t *testing.T) {
	dir := t.TempDir()
	name, err := NextName(dir, "ComfyUI", ".png")
	if err != nil || name != "ComfyUI_00001_.png" {
		t.Fatalf("NextName(empty) = %q, %v", name, err)
	}
	for _, n := range []string{"ComfyUI_00001_.png", "ComfyUI_00007_.png", "Other_00009_.png", "ComfyUI_00012_.webp"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}
	name, err = NextName(dir, "ComfyUI", ".png")
	if err != nil || name != "ComfyUI_00008_.png" {
		t.Fatalf("NextName() = %q, %v", name, err)
	}
	if name, _ := NextName(filepath.Join(dir, "missing"), "x", ".txt"); name != "x_00001_.txt" {
		t.Fatalf("NextName(missing dir) = %q", name)
	}
}
