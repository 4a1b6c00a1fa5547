package rlogin

import (
	"bytes"
	"testing"
)

func TestEncodeStartupAtomicity(t *testing.T) {
	got := encodeStartup("alice", "bob", "xterm", "38400")
	want := []byte{
		0x00, 'a', 'l', 'i', 'c', 'e', 0x00,
		'b', 'o', 'b', 0x00,
		'x', 't', 'e', 'r', 'm', '/', '3', '8', '4', '0', '0', 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeStartup = % x, want % x", got, want)
	}
}

func TestEncodeStartupTruncatesTermSpeedToLeadingDigits(t *testing.T) {
	got := encodeStartup("alice", "bob", "xterm", "38400,38400")
	want := []byte{
		0x00, 'a', 'l', 'i', 'c', 'e', 0x00,
		'b', 'o', 'b', 0x00,
		'x', 't', 'e', 'r', 'm', '/', '3', '8', '4', '0', '0', 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeStartup with comma-separated termspeed = % x, want % x", got, want)
	}
}

func TestEncodeWindowSize(t *testing.T) {
	got := encodeWindowSize(80, 24)
	want := []byte{0xFF, 0xFF, 's', 's', 0x00, 0x18, 0x00, 0x50, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeWindowSize(80, 24) = % x, want % x", got, want)
	}
}
