package devbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/model"
)

// account is a user row including its password hash.
type account struct {
	model.User
	PasswordHash string
}

// CreateUser inserts a new account. Emails are compared case-insensitively.
// A duplicate email is an apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash, username string, now time.Time) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u := &model.User{
		ID:        uuid.NewString(),
		Email:     email,
		Username:  username,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, username, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?)`,
		u.ID, u.Email, passwordHash, u.Username, timestamp(u.CreatedAt), timestamp(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("user", email)
		}
		return nil, fmt.Errorf("devbackend: inserting user %s: %w", email, err)
	}
	return u, nil
}

// userByEmail returns the account for email, or apperror.ErrNotFound.
func (db *DB) userByEmail(ctx context.Context, email string) (*account, error) {
	return db.scanAccount(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// UserByID returns the user with the given id, or apperror.ErrNotFound.
func (db *DB) UserByID(ctx context.Context, id string) (*model.User, error) {
	a, err := db.scanAccount(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	return &a.User, nil
}

func (db *DB) scanAccount(ctx context.Context, column, value string) (*account, error) {
	var (
		a                    account
		createdAt, updatedAt string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, username, avatar_url, created_at, updated_at
		 FROM users WHERE `+column+` = ?`,
		value,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Username, &a.AvatarURL, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("devbackend: getting user by %s: %w", column, err)
	}

	if a.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// IssueRefreshToken stores and returns a new opaque refresh token for userID.
func (db *DB) IssueRefreshToken(ctx context.Context, userID string, now time.Time) (string, error) {
	token := xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, revoked, created_at) VALUES (?, ?, 0, ?)`,
		token, userID, timestamp(now),
	)
	if err != nil {
		return "", fmt.Errorf("devbackend: issuing refresh token for %s: %w", userID, err)
	}
	return token, nil
}

// RotateRefreshToken revokes token and returns its owner. An unknown or already
// revoked token is apperror.ErrNotFound.
func (db *DB) RotateRefreshToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := db.conn.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE token = ? AND revoked = 0 RETURNING user_id`,
		token,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("refresh token", token)
		}
		return "", fmt.Errorf("devbackend: rotating refresh token: %w", err)
	}
	return userID, nil
}

// RevokeRefreshTokens revokes every refresh token of userID (sign-out).
func (db *DB) RevokeRefreshTokens(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("devbackend: revoking refresh tokens for %s: %w", userID, err)
	}
	return nil
}

// RecordPasswordReset logs a reset request. No mail is sent.
func (db *DB) RecordPasswordReset(ctx context.Context, email string, now time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO password_resets (email, requested_at) VALUES (?, ?)`,
		strings.ToLower(strings.TrimSpace(email)), timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("devbackend: recording password reset: %w", err)
	}
	return nil
}

// PasswordResetCount returns how many resets were requested for email.
func (db *DB) PasswordResetCount(ctx context.Context, email string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM password_resets WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("devbackend: counting password resets: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
