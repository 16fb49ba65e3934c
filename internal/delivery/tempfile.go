package delivery

import (
	"fmt"
	"os"
	"path/filepath"

	"relay/internal/transport"
)

// withTempFile creates an empty file under dir, passes its path to fn and
// removes it when fn returns or panics.
func withTempFile(dir, pattern string, fn func(path string) error) error {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return fn(path)
}

// tempPattern keeps the media's extension so the upload is typed correctly.
func tempPattern(msg *transport.Message) string {
	ext := ""
	if msg.Media != nil {
		ext = filepath.Ext(msg.Media.FileName)
	}
	if ext == "" && msg.Media != nil {
		ext = defaultExt[msg.Media.Kind]
	}
	return "relay-*" + ext
}

var defaultExt = map[transport.MediaKind]string{
	transport.MediaPhoto:     ".jpg",
	transport.MediaVideo:     ".mp4",
	transport.MediaAudio:     ".mp3",
	transport.MediaVoice:     ".ogg",
	transport.MediaAnimation: ".mp4",
}
