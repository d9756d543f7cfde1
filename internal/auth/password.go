package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a salted bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// burnCompare spends the same time as a real comparison. Used when the
// username is unknown so response time does not reveal which users exist.
func burnCompare(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword("not-a-real-password")
	})
	CheckPassword(password, dummyHash)
}
