package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/feedback-insights-api/internal/models"
)

// TokenRepository keeps refresh tokens in Redis keyed by token value, with a
// per-user index so a login can revoke prior sessions.
type TokenRepository struct {
	client *redis.Client
}

// NewTokenRepository constructs a token repository.
func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client}
}

func tokenKey(token string) string {
	return "refresh_token:" + token
}

func userTokensKey(userID string) string {
	return "user_tokens:" + userID
}

// Save stores the refresh token with a TTL matching its expiry.
func (r *TokenRepository) Save(ctx context.Context, token *models.RefreshToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, tokenKey(token.Token), payload, ttl)
	pipe.SAdd(ctx, userTokensKey(token.UserID), token.Token)
	pipe.Expire(ctx, userTokensKey(token.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Find returns the stored token or redis.Nil when absent or expired.
func (r *TokenRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	raw, err := r.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, err
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	var stored models.RefreshToken
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	return &stored, nil
}

// Revoke removes a single refresh token.
func (r *TokenRepository) Revoke(ctx context.Context, token *models.RefreshToken) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, tokenKey(token.Token))
	pipe.SRem(ctx, userTokensKey(token.UserID), token.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser removes every refresh token issued to the user.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	tokens, err := r.client.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, tokenKey(t))
	}
	keys = append(keys, userTokensKey(userID))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}
