package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInitLevels(t *testing.T) {
	Init(true)
	if zerolog.GlobalLevel() != zerolog.DebugLevel || !DebugEnabled() {
		t.Errorf("expected debug level, got %s", zerolog.GlobalLevel())
	}
	Init(false)
	if zerolog.GlobalLevel() != zerolog.InfoLevel || DebugEnabled() {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}
}
