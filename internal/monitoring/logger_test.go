package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...any) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("replaying %d records", 42)
	if captured != "replaying 42 records" {
		t.Errorf("unexpected log output: %q", captured)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	defer SetLogger(nil)

	SetLogger(nil)
	// Must not panic.
	Logf("dropped %s", "message")
}
