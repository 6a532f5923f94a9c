package util

import (
	"path/filepath"
	"testing"
)

func TestGetAudioInfoMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.wav")
	if _, err := GetAudioInfo(missing); err == nil {
		t.Error("expected error for missing audio file")
	}
}
