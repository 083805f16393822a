package util

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 8

	partnerIDPrefix = "demo_user_"
)

var codeRegex = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// GenerateCode returns CodeLength characters drawn uniformly, with replacement, from CodeAlphabet.
func GenerateCode() (string, error) {
	code, err := nanoid.Generate(CodeAlphabet, CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return code, nil
}

// ValidateCode is case-sensitive: lowercase input is rejected.
func ValidateCode(code string) bool {
	return codeRegex.MatchString(code)
}

// PartnerID builds the synthetic id given to a partner that has no real account.
func PartnerID(now time.Time) string {
	return partnerIDPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}
