package store

import (
	"fmt"
	"strconv"
)

// Keys are zero padded, so lexicographic order is the order of heights
const heightKeyDigits = 12

func HeightKey(height int64) []byte {
	return []byte(fmt.Sprintf("%0*d", heightKeyDigits, height))
}

func ParseHeightKey(key []byte) (int64, error) {
	return strconv.ParseInt(string(key), 10, 64)
}
