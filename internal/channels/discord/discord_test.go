package discord

import (
	"strings"
	"testing"
)

func TestChunkTextShort(t *testing.T) {
	chunks := chunkText("hello", maxMessageLen)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("short text must pass through untouched, got %v", chunks)
	}
}

func TestChunkTextSplits(t *testing.T) {
	text := strings.Repeat("a", maxMessageLen*2+10)
	chunks := chunkText(text, maxMessageLen)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:2] {
		if len([]rune(c)) != maxMessageLen {
			t.Errorf("chunk %d has %d runes, expected %d", i, len([]rune(c)), maxMessageLen)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("chunks must reassemble to the original text")
	}
}

func TestChunkTextRuneSafe(t *testing.T) {
	// Multibyte runes must never be split mid-sequence.
	text := strings.Repeat("é", 7)
	chunks := chunkText(text, 3)

	if strings.Join(chunks, "") != text {
		t.Error("chunks must reassemble to the original text")
	}
	for _, c := range chunks {
		if strings.ContainsRune(c, '�') {
			t.Errorf("chunk contains a broken rune: %q", c)
		}
	}
}
