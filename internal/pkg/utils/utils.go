package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID v4 string.
func GenerateUUID() string {
	return uuid.New().String()
}

// RandomCode generates a random alphanumeric code of given length.
// The charset omits look-alike characters (0/O, 1/l/I).
func RandomCode(length int) string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// GenerateReferralCode produces an opaque referral token.
func GenerateReferralCode() string {
	return RandomCode(8)
}

// ScreenshotName builds a unique storage name for a payment receipt.
func ScreenshotName(telegramID string) string {
	return fmt.Sprintf("receipt_%s_%s.jpg", telegramID, GenerateUUID())
}

// FormatAmount renders an amount in so'm with thousands separators,
// e.g. 200000 -> "200 000".
func FormatAmount(amount int) string {
	s := fmt.Sprintf("%d", amount)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		out = "-" + out
	}
	return out
}

// NormalizePhone strips spaces and dashes from a phone number.
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(strings.TrimSpace(phone))
}
