package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager reads sessions issued by the login service from Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
}

// Session holds the identity bound to a request.
type Session struct {
	ID     string
	Caller Caller
}

type sessionPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Site     string `json:"site"`
	Company  string `json:"company"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl}
}

// Load resolves the session referenced by the bearer token or session cookie.
// A request without a token yields ErrSessionMissing.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	token := bearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(sm.cookieName); err == nil {
			token = strings.TrimSpace(cookie.Value)
		}
	}
	if token == "" {
		return nil, ErrSessionMissing
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionMissing
		}
		return nil, fmt.Errorf("shared: load session: %w", err)
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	id, err := uuid.Parse(stored.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: actor id: %v", ErrSessionInvalid, err)
	}
	caller := Caller{
		ID:       id,
		Username: stored.Username,
		Role:     strings.ToLower(strings.TrimSpace(stored.Role)),
		Tenant:   NewTenant(stored.Site, stored.Company),
	}
	if !caller.Valid() {
		return nil, ErrSessionInvalid
	}
	return &Session{ID: token, Caller: caller}, nil
}

// Issue stores a session for caller and returns its token. The login service
// owns this in production; seeding and tests use it directly.
func (sm *SessionManager) Issue(ctx context.Context, caller Caller) (string, error) {
	if !caller.Valid() {
		return "", ErrSessionInvalid
	}
	token := uuid.NewString()
	data, err := json.Marshal(sessionPayload{
		ID:       caller.ID.String(),
		Username: caller.Username,
		Role:     caller.Role,
		Site:     caller.Tenant.Site,
		Company:  caller.Tenant.Company,
	})
	if err != nil {
		return "", err
	}
	if err := sm.client.Set(ctx, sm.redisKey(token), data, sm.ttl).Err(); err != nil {
		return "", fmt.Errorf("shared: issue session: %w", err)
	}
	return token, nil
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
