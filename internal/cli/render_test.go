package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pilotdeck/pilotdeck/internal/chat"
	"github.com/pilotdeck/pilotdeck/internal/notify"
	"github.com/pilotdeck/pilotdeck/internal/progress"
	"github.com/pilotdeck/pilotdeck/internal/stream"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024 * 1024 * 1024, "3072.0 TiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBytes(tt.in))
		})
	}
}

func TestFormatProgress(t *testing.T) {
	line := formatProgress(progress.Progress{
		Hash:     "abcdef0123456789",
		Progress: 50,
		Speed:    2048,
		ETA:      90,
		Status:   "downloading",
	})

	assert.Contains(t, line, "abcdef01 ")
	assert.NotContains(t, line, "abcdef012")
	assert.Contains(t, line, "[##########..........]")
	assert.Contains(t, line, " 50.0%")
	assert.Contains(t, line, "2.0 KiB/s")
	assert.Contains(t, line, "eta 90s")
	assert.Contains(t, line, "downloading")
}

func TestFormatProgress_Clamps(t *testing.T) {
	assert.Contains(t, formatProgress(progress.Progress{Hash: "h", Progress: 150}), "[####################]")
	assert.Contains(t, formatProgress(progress.Progress{Hash: "h", Progress: -3}), "[....................]")

	line := formatProgress(progress.Progress{Hash: "h", Progress: 10})
	assert.NotContains(t, line, "/s")
	assert.NotContains(t, line, "eta")
}

func TestFormatMessage(t *testing.T) {
	m := chat.Message{
		ID:      "42",
		Content: "Found **3** results",
		Buttons: []chat.Button{{Text: "Download", Action: "download"}},
		Attachments: []chat.Attachment{
			{Type: chat.AttachmentImage, URL: "https://img.example/p.jpg", Title: "Poster"},
			{Type: chat.AttachmentLink, URL: "https://tmdb.example/1"},
		},
	}

	out := formatMessage(m, func(s string) string { return "<" + s + ">" })
	assert.Contains(t, out, "pilot")
	assert.Contains(t, out, "#42")
	assert.Contains(t, out, "<Found **3** results>")
	assert.Contains(t, out, "Poster")
	assert.Contains(t, out, "https://img.example/p.jpg")
	assert.Contains(t, out, "link")
	assert.Contains(t, out, "Download")
	assert.Contains(t, out, "download]")

	own := formatMessage(chat.Message{ID: "1", Content: "hi", IsFromUser: true}, func(s string) string { return s })
	assert.Contains(t, own, "you")
	assert.NotContains(t, own, "pilot")
}

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)

	p.state(stream.StateConnected)
	p.streamError(errors.New("boom"))
	p.notification(notify.SystemMessage{Title: "Disk", Content: "90% full", Type: notify.LevelWarning})
	p.message(chat.Message{ID: "7", Content: "**bold** stays raw"})

	out := buf.String()
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "stream error: boom")
	assert.Contains(t, out, "[warning] Disk 90% full")
	assert.Contains(t, out, "**bold** stays raw")
}
