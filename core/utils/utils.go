package utils

import (
	"crypto/rand"
	"time"
)

func NowUTC() time.Time {
	return time.Now().UTC()
}

func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
