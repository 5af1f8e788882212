package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const requestIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// TimestampLayout is the textual format of the created-at and updated-at columns
const TimestampLayout = "2006-01-02T15:04:05Z07:00"

// NewRequestID returns an id of the form <prefix>-<yyyyMMdd>-<4 base36 chars>,
// with the date taken in loc.
func NewRequestID(prefix string, now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), randomSuffix(4))
}

func randomSuffix(n int) string {
	max := big.NewInt(int64(len(requestIDAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			v = big.NewInt(time.Now().UnixNano() % int64(len(requestIDAlphabet)))
		}
		buf[i] = requestIDAlphabet[v.Int64()]
	}
	return string(buf)
}

// FormatTimestamp formats t in loc using TimestampLayout
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimestampLayout)
}
