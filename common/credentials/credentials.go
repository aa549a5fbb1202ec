// Package credentials turns plaintext passwords into salted bcrypt credentials
// and checks plaintext candidates against them.
package credentials

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooLong = errors.New("password must not exceed 72 bytes")
)

// Cost is the bcrypt work factor applied by Hash. Tests lower it to bcrypt.MinCost.
var Cost = bcrypt.DefaultCost

var (
	absentOnce       sync.Once
	absentCredential []byte
)

// Hash returns a credential for plaintext. Every call draws a fresh salt.
func Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), Cost)
	if err != nil {
		if err == bcrypt.ErrPasswordTooLong {
			return "", ErrPasswordTooLong
		}
		return "", errors.Wrap(err, "failed to hash password")
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches credential.
func Verify(plaintext, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(credential), []byte(plaintext)) == nil
}

// VerifyAbsent spends the same work as Verify for an account that does not
// exist, so that callers answer unknown and wrong-password attempts alike.
// It always reports false.
func VerifyAbsent(plaintext string) bool {
	absentOnce.Do(func() {
		absentCredential, _ = bcrypt.GenerateFromPassword([]byte("absent-account"), Cost)
	})
	bcrypt.CompareHashAndPassword(absentCredential, []byte(plaintext))
	return false
}
