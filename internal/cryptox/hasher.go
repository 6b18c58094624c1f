// Package cryptox implements salted one-way password hashing. Hashes are
// stored as self-describing strings (bcrypt modular crypt or argon2id PHC),
// so the parameters travel with every record.
package cryptox

import (
	"errors"
	"fmt"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

var (
	ErrUnknownAlgorithm = errors.New("unknown password hash algorithm")
	ErrMalformedHash    = errors.New("malformed password hash")
	ErrPasswordTooLong  = errors.New("password too long")
)

// Hasher turns passwords into encoded hashes and checks candidates against
// them. Verify compares in constant time and reports a mismatch as
// (false, nil); an error means the stored hash itself is unusable.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	Name() string
}

// NewHasher returns the hasher for algorithm. bcryptCost is ignored by argon2id.
func NewHasher(algorithm string, bcryptCost int) (Hasher, error) {
	switch algorithm {
	case AlgorithmBcrypt:
		return NewBcryptHasher(bcryptCost), nil
	case AlgorithmArgon2id:
		return NewArgon2Hasher(DefaultArgon2Params), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}
