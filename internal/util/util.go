// Package util holds small helpers shared by logging and configuration.
package util

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// WritablePath returns the cleaned WRITABLE_PATH environment variable, or "".
func WritablePath() string {
	if value, ok := os.LookupEnv("WRITABLE_PATH"); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return filepath.Clean(trimmed)
		}
	}
	return ""
}

// UnderWritable roots a relative path at WRITABLE_PATH when that is set.
// Absolute paths are returned unchanged.
func UnderWritable(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	base := WritablePath()
	if base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// HideSecret obscures a credential for logging, keeping only its edges.
func HideSecret(secret string) string {
	switch n := len(secret); {
	case n > 8:
		return secret[:4] + "..." + secret[n-4:]
	case n > 4:
		return secret[:2] + "..." + secret[n-2:]
	case n > 2:
		return secret[:1] + "..." + secret[n-1:]
	default:
		return secret
	}
}

// MaskSensitiveQuery masks credential-like parameters within a raw query string.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !isSensitiveParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(HideSecret(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func isSensitiveParam(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	for _, marker := range []string{"token", "secret", "password", "signature", "key"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return key == "code"
}
