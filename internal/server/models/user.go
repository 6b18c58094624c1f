package models

import "time"

// User is a stored account. PasswordHash holds an encoded salted hash
// (bcrypt modular-crypt or argon2id PHC string), never the plaintext.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}
