package binary

import (
	"bytes"
	"testing"
)

func TestWriterU32(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
		{0xFFFFFFFF, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteU32(tt.v)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("WriteU32(%d) = %x, want %x", tt.v, w.Bytes(), tt.want)
		}
	}
}

func TestWriterS32(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteS32(tt.v)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("WriteS32(%d) = %x, want %x", tt.v, w.Bytes(), tt.want)
		}
	}
}

func TestWriterFixedWidth(t *testing.T) {
	w := NewWriter()
	w.WriteU32LE(0x01020304)
	w.WriteU64LE(0x0a0b0c0d0e0f1011)
	w.Zero(2)
	w.WriteCString("ab")

	want := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x11, 0x10, 0x0f, 0x0e, 0x0d, 0x0c, 0x0b, 0x0a,
		0, 0,
		'a', 'b', 0,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %x, want %x", w.Bytes(), want)
	}
	if w.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", w.Len(), len(want))
	}
}

func TestWriterName(t *testing.T) {
	w := NewWriter()
	w.WriteName("memory")
	want := append([]byte{6}, "memory"...)
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteName = %x, want %x", w.Bytes(), want)
	}
}
