// Package tlswarn logs a single process-wide warning when a peer dials a
// relay without verifying its certificate.
package tlswarn

import (
	"log"
	"sync"
)

var once sync.Once

// LogInsecure logs the warning the first time it is called and does nothing after.
func LogInsecure() {
	once.Do(func() {
		log.Print("[TLS] WARNING: relay certificate verification is disabled, only use this with self-signed development relays")
	})
}
