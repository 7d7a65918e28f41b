package heapchart

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Account name and password limits.
const (
	UsernameMin = 3
	PasswordMin = 8
)

// Signup validates a new account and stores it with a bcrypt hash of the
// password. confirmation must repeat password.
func Signup(ctx context.Context, store Storage, username, password, confirmation string) (*User, error) {
	if username == "" {
		return nil, badRequest("username is required")
	}
	if utf8.RuneCountInString(username) < UsernameMin {
		return nil, badRequest("username must have at least %d characters", UsernameMin)
	}
	if _, err := store.UserByName(ctx, username); err == nil {
		return nil, newError(codeConflict, fmt.Sprintf("username %q unavailable", username))
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if password != confirmation {
		return nil, badRequest("passwords do not match")
	}
	if password == "" {
		return nil, badRequest("password is required")
	}
	if utf8.RuneCountInString(password) < PasswordMin {
		return nil, badRequest("password must have at least %d characters", PasswordMin)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, badRequest("password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return store.CreateUser(ctx, username, string(hash))
}

// Authenticate returns the user whose name and password match.
// Any mismatch, including an unknown name, returns ErrUnauthorized.
func Authenticate(ctx context.Context, store Storage, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, badRequest("username and password are required")
	}

	user, err := store.UserByName(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SecretHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}
