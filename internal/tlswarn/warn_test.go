package tlswarn

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"
)

// Mutates the package Once and the global logger, so no t.Parallel().
func TestLogInsecureOnce(t *testing.T) {
	once = sync.Once{}

	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })

	for i := 0; i < 3; i++ {
		LogInsecure()
	}

	output := buf.String()
	if count := strings.Count(output, "[TLS] WARNING:"); count != 1 {
		t.Fatalf("expected exactly 1 warning, got %d; output:\n%s", count, output)
	}
	if !strings.Contains(output, "certificate verification is disabled") {
		t.Fatalf("warning missing expected text; output:\n%s", output)
	}
}
