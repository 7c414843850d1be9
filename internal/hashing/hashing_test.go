package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

// mkContent builds deterministic content of the given size with a marker
// byte pattern so head, middle, and tail regions are distinguishable.
func mkContent(size int, seed byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i)&0x7F ^ seed
	}
	return b
}

func TestPartialDeterministic(t *testing.T) {
	content := mkContent(300*1024, 1)

	h1, err := Partial(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}
	h2, err := Partial(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}
	if h1 != h2 {
		t.Errorf("Partial not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("Partial hash length = %d, want 64 hex chars", len(h1))
	}
}

func TestPartialIgnoresMiddle(t *testing.T) {
	a := mkContent(300*1024, 1)
	b := append([]byte(nil), a...)
	// Flip bytes well inside the middle, outside both 64 KiB windows.
	for i := 150 * 1024; i < 150*1024+100; i++ {
		b[i] ^= 0xFF
	}

	ha, _ := Partial(bytes.NewReader(a), int64(len(a)))
	hb, _ := Partial(bytes.NewReader(b), int64(len(b)))
	if ha != hb {
		t.Errorf("middle-only change altered partial hash")
	}
}

func TestPartialSensitivity(t *testing.T) {
	base := mkContent(300*1024, 1)
	baseHash, _ := Partial(bytes.NewReader(base), int64(len(base)))

	headChanged := append([]byte(nil), base...)
	headChanged[10] ^= 0xFF

	tailChanged := append([]byte(nil), base...)
	tailChanged[len(tailChanged)-10] ^= 0xFF

	sizeChanged := base[:len(base)-1]

	cases := []struct {
		name    string
		content []byte
	}{
		{"head change", headChanged},
		{"tail change", tailChanged},
		{"size change", sizeChanged},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := Partial(bytes.NewReader(tc.content), int64(len(tc.content)))
			if err != nil {
				t.Fatalf("Partial: %v", err)
			}
			if h == baseHash {
				t.Errorf("%s not reflected in partial hash", tc.name)
			}
		})
	}
}

func TestPartialSmallFile(t *testing.T) {
	content := []byte("tiny model file")
	h1, err := Partial(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Partial: %v", err)
	}

	changed := append([]byte(nil), content...)
	changed[5] ^= 0xFF
	h2, _ := Partial(bytes.NewReader(changed), int64(len(changed)))
	if h1 == h2 {
		t.Errorf("small-file content change not reflected")
	}
}

func TestPartialStreamMatchesPartial(t *testing.T) {
	sizes := []int{0, 1, 100, 64 * 1024, 128 * 1024, 128*1024 + 1, 300 * 1024}
	for _, size := range sizes {
		content := mkContent(size, 7)

		want, err := Partial(bytes.NewReader(content), int64(size))
		if err != nil {
			t.Fatalf("Partial(size=%d): %v", size, err)
		}
		got, gotSize, err := PartialStream(bytes.NewReader(content))
		if err != nil {
			t.Fatalf("PartialStream(size=%d): %v", size, err)
		}
		if gotSize != int64(size) {
			t.Errorf("PartialStream size = %d, want %d", gotSize, size)
		}
		if got != want {
			t.Errorf("PartialStream(size=%d) = %s, want %s", size, got, want)
		}
	}
}

func TestFull(t *testing.T) {
	content := []byte("hello catalog")
	want := sha256.Sum256(content)

	got, err := Full(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if got != hex.EncodeToString(want[:]) {
		t.Errorf("Full = %s, want %s", got, hex.EncodeToString(want[:]))
	}
}
