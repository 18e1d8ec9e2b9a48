package mfa

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/security"
)

const (
	otpMin = 100000
	otpMax = 999999
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// GenerateOTP returns a 6-digit numeric code drawn uniformly from 100000–999999 using crypto/rand.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// HashOTP returns the stored form of a code (SHA-256, hex-encoded).
func HashOTP(otp string) string {
	return security.HashToken(otp)
}
