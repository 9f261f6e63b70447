package channel

import (
	"strings"
	"testing"
)

func TestSplitMessageShortContentIsOneChunk(t *testing.T) {
	chunks := splitMessage("short answer", 4000)
	if len(chunks) != 1 || chunks[0] != "short answer" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestSplitMessagePrefersNewlineBoundaries(t *testing.T) {
	content := strings.Repeat("organic treatment line\n", 10)
	chunks := splitMessage(content, 100)

	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d exceeds limit: %d bytes", i, len(c))
		}
		if !strings.HasSuffix(strings.TrimRight(c, "\n"), "line") {
			t.Errorf("chunk %d cut mid-line: %q", i, c)
		}
	}
	if got := strings.Join(chunks, "\n"); got != content {
		t.Errorf("chunks do not reassemble the content:\n%q\nwant\n%q", got, content)
	}
}

func TestSplitMessageHardCutsUnbrokenContent(t *testing.T) {
	content := strings.Repeat("x", 250)
	chunks := splitMessage(content, 100)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if strings.Join(chunks, "") != content {
		t.Error("hard-cut chunks lost content")
	}
}

func TestIsAllowed(t *testing.T) {
	open := NewTelegram(TelegramConfig{Token: "t", Logger: testLogger()})
	if !open.isAllowed(42) {
		t.Error("empty allow list should admit everyone")
	}

	restricted := NewTelegram(TelegramConfig{
		Token:     "t",
		AllowFrom: []string{"100", " 200 ", "not-a-number"},
		Logger:    testLogger(),
	})
	if !restricted.isAllowed(100) || !restricted.isAllowed(200) {
		t.Error("listed IDs should be admitted")
	}
	if restricted.isAllowed(300) {
		t.Error("unlisted ID should be rejected")
	}
}
