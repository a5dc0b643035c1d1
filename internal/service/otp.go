package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
)

// OTPGenerator produces delivery codes
type OTPGenerator interface {
	Generate() (string, error)
}

// NumericOTP generates zero-padded decimal codes of Length digits
type NumericOTP struct {
	Length int
}

// Generate returns a new code
func (g NumericOTP) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = 6
	}

	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

func otpMatches(stored *string, supplied string) bool {
	if stored == nil || *stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(supplied)) == 1
}
