package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// NumericCode returns a string of exactly n decimal digits drawn from
// crypto/rand. It backs both challenge codes and generated user secrets.
func NumericCode(n int) (string, error) {
	if n < 1 || n > 64 {
		return "", errors.New("invalid code length")
	}

	var b strings.Builder
	b.Grow(n)

	max := big.NewInt(10)
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + v.Int64()))
	}

	return b.String(), nil
}
