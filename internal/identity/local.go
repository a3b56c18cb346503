package identity

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type localAccount struct {
	Identity
	passwordHash string
	createdAt    time.Time
}

type persistedAccount struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LocalProvider is an in-memory identity provider used for development and for
// deployments without Firebase. It mints and verifies its own JWTs.
type LocalProvider struct {
	mu       sync.RWMutex
	accounts map[string]*localAccount // uid -> account
	byEmail  map[string]string        // email -> uid
	current  *Identity
	watchers map[int]SessionCallback
	nextID   int

	jwtSecret     string
	jwtExpiration time.Duration

	// When set, accounts survive restarts in a JSON file at this path.
	path string
}

func NewLocalProvider(jwtSecret string, jwtExpiration time.Duration) *LocalProvider {
	return &LocalProvider{
		accounts:      make(map[string]*localAccount),
		byEmail:       make(map[string]string),
		watchers:      make(map[int]SessionCallback),
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// NewPersistentLocalProvider is NewLocalProvider backed by a JSON account file,
// so sign-ins work across process restarts.
func NewPersistentLocalProvider(path, jwtSecret string, jwtExpiration time.Duration) (*LocalProvider, error) {
	p := NewLocalProvider(jwtSecret, jwtExpiration)
	p.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	var stored []persistedAccount
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	for _, pa := range stored {
		acc := &localAccount{
			Identity: Identity{
				UID:         pa.UID,
				Email:       pa.Email,
				DisplayName: pa.DisplayName,
				PhotoURL:    pa.PhotoURL,
			},
			passwordHash: pa.PasswordHash,
			createdAt:    pa.CreatedAt,
		}
		p.accounts[acc.UID] = acc
		p.byEmail[acc.Email] = acc.UID
	}
	return p, nil
}

// saveLocked writes the account file atomically. Callers hold p.mu.
func (p *LocalProvider) saveLocked() error {
	if p.path == "" {
		return nil
	}

	stored := make([]persistedAccount, 0, len(p.accounts))
	for _, acc := range p.accounts {
		stored = append(stored, persistedAccount{
			UID:          acc.UID,
			Email:        acc.Email,
			DisplayName:  acc.DisplayName,
			PhotoURL:     acc.PhotoURL,
			PasswordHash: acc.passwordHash,
			CreatedAt:    acc.createdAt,
		})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	if len(password) < 6 {
		return nil, ErrWeakCredential
	}

	p.mu.Lock()
	if _, exists := p.byEmail[email]; exists {
		p.mu.Unlock()
		return nil, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	acc := &localAccount{
		Identity: Identity{
			UID:         uuid.New().String(),
			Email:       email,
			DisplayName: displayName,
		},
		passwordHash: string(hash),
		createdAt:    time.Now(),
	}
	p.accounts[acc.UID] = acc
	p.byEmail[email] = acc.UID

	if err := p.saveLocked(); err != nil {
		delete(p.accounts, acc.UID)
		delete(p.byEmail, email)
		p.mu.Unlock()
		return nil, err
	}

	id := acc.Identity
	p.current = &id
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	notify(watchers, &id)
	return &id, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	p.mu.Lock()
	uid, exists := p.byEmail[email]
	if !exists {
		p.mu.Unlock()
		return nil, ErrNotFound
	}
	acc := p.accounts[uid]
	if err := bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(password)); err != nil {
		p.mu.Unlock()
		return nil, ErrBadCredential
	}

	id := acc.Identity
	p.current = &id
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	notify(watchers, &id)
	return &id, nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	notify(watchers, nil)
	return nil
}

func (p *LocalProvider) OnSessionChange(cb SessionCallback) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = cb
	current := p.current
	p.mu.Unlock()

	// First notification reports the session as it stands right now.
	cb(current)

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

func (p *LocalProvider) snapshotWatchers() []SessionCallback {
	out := make([]SessionCallback, 0, len(p.watchers))
	for _, cb := range p.watchers {
		out = append(out, cb)
	}
	return out
}

func notify(watchers []SessionCallback, id *Identity) {
	for _, cb := range watchers {
		cb(id)
	}
}

// Token mints a signed bearer token for the given account.
func (p *LocalProvider) Token(uid string) (string, error) {
	p.mu.RLock()
	acc, exists := p.accounts[uid]
	p.mu.RUnlock()
	if !exists {
		return "", ErrNotFound
	}

	claims := jwt.MapClaims{
		"user_id": acc.UID,
		"email":   acc.Email,
		"exp":     time.Now().Add(p.jwtExpiration).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(p.jwtSecret))
}

// VerifyToken implements TokenVerifier.
func (p *LocalProvider) VerifyToken(ctx context.Context, tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(p.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrBadCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrBadCredential
	}
	uid, ok := claims["user_id"].(string)
	if !ok || uid == "" {
		return "", "", ErrBadCredential
	}
	email, _ := claims["email"].(string)
	return uid, email, nil
}
