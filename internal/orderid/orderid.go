package orderid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Order ids look like ORDER-1700000000000-x7k2m9qp4. The millisecond
// timestamp plus a random suffix keeps concurrent checkouts from colliding.
const (
	Prefix    = "ORDER-"
	suffixLen = 9
	// MinLength rejects truncated ids on callback. Prefix + 13-digit
	// millisecond timestamp leaves room to spare below any id we generate.
	MinLength = 20
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// New generates a fresh order id.
func New() (string, error) {
	suffix, err := randomSuffix(suffixLen)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return fmt.Sprintf("%s%d-%s", Prefix, time.Now().UnixMilli(), suffix), nil
}

// randomSuffix draws base36 characters with rejection sampling to avoid
// modulo bias.
func randomSuffix(count int) (string, error) {
	const threshold = 252 // 256 - (256 % 36)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if buf[i] < threshold {
				sb.WriteByte(alphabet[buf[i]%36])
			}
		}
	}
	return sb.String(), nil
}

// Validate checks the literal prefix and the minimum length floor. It does
// not try to parse the timestamp: gateway callbacks echo ids verbatim, so a
// structural check is all the format guarantees.
func Validate(id string) error {
	if !strings.HasPrefix(id, Prefix) {
		return fmt.Errorf("order id must start with %q", Prefix)
	}
	if len(id) < MinLength {
		return fmt.Errorf("order id too short: %d < %d", len(id), MinLength)
	}
	return nil
}
