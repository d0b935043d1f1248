package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// kdfParams are the Argon2id cost parameters.
type kdfParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

func defaultKDFParams() kdfParams {
	return kdfParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

const keyLength = 32

// hashPassword derives an Argon2id hash. The encoded form carries its own
// parameters: "argon2id$t=1,m=65536,p=4$<base64 key>".
func hashPassword(password string, params kdfParams) (hash, salt string, err error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), raw, params.Time, params.Memory, params.Threads, keyLength)
	encoded := fmt.Sprintf("argon2id$t=%d,m=%d,p=%d$%s",
		params.Time, params.Memory, params.Threads, base64.RawStdEncoding.EncodeToString(key))
	return encoded, base64.RawStdEncoding.EncodeToString(raw), nil
}

// verifyPassword reports whether password matches the stored hash.
func verifyPassword(password, hash, salt string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false, fmt.Errorf("unsupported password hash")
	}
	var params kdfParams
	if _, err := fmt.Sscanf(parts[1], "t=%d,m=%d,p=%d", &params.Time, &params.Memory, &params.Threads); err != nil {
		return false, fmt.Errorf("parse hash params: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}
	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	got := argon2.IDKey([]byte(password), rawSalt, params.Time, params.Memory, params.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
