package utils

import (
	"crypto/rand"
	"math/big"
)

const formKeyLength = 16

func GenerateRandomString(length int) string {
	const charset = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// GenerateFormKey returns the per-session key storefront forms echo back.
func GenerateFormKey() string {
	return GenerateRandomString(formKeyLength)
}
