package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrMalformedPasswordHash  = errors.New("malformed password hash")
	ErrUnsupportedHashVersion = errors.New("unsupported argon2 version in password hash")
)

// Argon2idParams holds the argon2id cost parameters recorded alongside every
// hash, so stored credentials stay verifiable after the defaults change.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword derives an argon2id hash and encodes it in the PHC string
// form ($argon2id$v=19$m=,t=,p=$salt$key) together with its parameters.
func HashPassword(password string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a candidate password against a stored PHC-encoded
// hash in constant time. A mismatch reports ErrInvalidCredentials so callers
// treat it exactly like an unknown account.
func VerifyPassword(encoded, password string) error {
	salt, key, params, err := parseArgon2idHash(encoded)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func parseArgon2idHash(encoded string) (salt, key []byte, params Argon2idParams, err error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return nil, nil, params, ErrMalformedPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, nil, params, ErrMalformedPasswordHash
	}
	if version != argon2.Version {
		return nil, nil, params, ErrUnsupportedHashVersion
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, nil, params, ErrMalformedPasswordHash
	}

	if salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, nil, params, ErrMalformedPasswordHash
	}
	if key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, nil, params, ErrMalformedPasswordHash
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return salt, key, params, nil
}
