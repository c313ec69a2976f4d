package crypto

import (
	"crypto/rand"
	"errors"
	"io"
)

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

const (
	// MasterKeyPrefix marks account credentials.
	MasterKeyPrefix = "mk_"
	// SiteKeyPrefix marks website credentials.
	SiteKeyPrefix = "sk_"

	keyLength = 32
)

// GenerateString returns a random alpha-numeric string of length n.
func GenerateString(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("length must be positive")
	}
	b := make([]rune, n)
	buf := make([]byte, len(b))
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(buf[i])%len(letters)]
	}
	return string(b), nil
}

// NewMasterKey generates an account API key.
func NewMasterKey() (string, error) {
	return withPrefix(MasterKeyPrefix)
}

// NewSiteKey generates a website API key.
func NewSiteKey() (string, error) {
	return withPrefix(SiteKeyPrefix)
}

func withPrefix(prefix string) (string, error) {
	s, err := GenerateString(keyLength)
	if err != nil {
		return "", err
	}
	return prefix + s, nil
}
