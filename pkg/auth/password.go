package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/shashiranjanraj/foodie/config"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are refused
// rather than silently truncated.
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("auth: password longer than 72 bytes")

func cost() int {
	c := config.BcryptCost()
	if c < bcrypt.MinCost || c > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return c
}

func HashPassword(plain string) (string, error) {
	if len(plain) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost())
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash is true when hash was made with a different cost than the
// configured one. Login upgrades such hashes in place.
func NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	return err == nil && c != cost()
}
