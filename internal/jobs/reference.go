package jobs

import (
	"crypto/rand"
	"fmt"
	"time"
)

// referenceAlphabet omits characters that are easy to misread (0/O, 1/I).
const referenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const referenceRandomLen = 8

// NewReference returns a human-readable correlation code such as PRF-2026-7K3QX9MA.
func NewReference(now time.Time) string {
	var b [referenceRandomLen]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("PRF-%d-%d", now.UTC().Year(), now.UnixNano())
	}
	out := make([]byte, referenceRandomLen)
	for i, v := range b {
		out[i] = referenceAlphabet[int(v)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("PRF-%d-%s", now.UTC().Year(), out)
}
