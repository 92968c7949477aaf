package admission

import (
	"crypto/rand"
	"math/big"
)

const (
	joinCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	joinCodeLength = 6
)

// GenerateJoinCode returns a 6-character uppercase alphanumeric code.
func GenerateJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	max := big.NewInt(int64(len(joinCodeChars)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = joinCodeChars[n.Int64()]
	}
	return string(buf), nil
}
