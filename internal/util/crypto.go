package util

import (
	"crypto/rand"
	"encoding/hex"
)

const keyBytes = 32

// GenerateKey returns a random 32-byte key, hex encoded, suitable for Encrypt/Decrypt.
func GenerateKey() (string, error) {
	bytes := make([]byte, keyBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func MaskCode(code string) string {
	if len(code) <= 4 {
		return "****"
	}
	return code[:4] + "-****"
}
