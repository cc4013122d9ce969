package domain

import "strings"

// CompositeKey joins a locally assigned id with an exchange or adapter code.
func CompositeKey(localID, code string) string {
	return localID + "." + code
}

// SplitKey is the inverse of CompositeKey. The split happens at the last dot
// so that local ids containing dots (vt-symbols, position keys) survive.
func SplitKey(key string) (localID, code string) {
	i := strings.LastIndexByte(key, '.')
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// VtSymbol returns the key of a tradable instrument.
func VtSymbol(symbol string, exchange Exchange) string {
	return CompositeKey(symbol, string(exchange))
}
