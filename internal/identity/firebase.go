package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

const signInEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

type FirebaseConfig struct {
	ProjectID       string
	CredentialsJSON string
	// APIKey is the web API key used for the password sign-in REST endpoint;
	// the admin SDK cannot verify passwords itself.
	APIKey string
}

// FirebaseProvider implements Provider on top of Firebase Auth: account
// management through the admin SDK, password verification through the
// Identity Toolkit REST API.
type FirebaseProvider struct {
	client     *fbauth.Client
	apiKey     string
	endpoint   string
	httpClient *http.Client

	mu       sync.Mutex
	current  *Identity
	watchers map[int]SessionCallback
	nextID   int
}

func NewFirebaseProvider(ctx context.Context, cfg FirebaseConfig) (*FirebaseProvider, error) {
	opts := []option.ClientOption{}
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}

	return &FirebaseProvider{
		client:   client,
		apiKey:   cfg.APIKey,
		endpoint: signInEndpoint,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
		watchers: make(map[int]SessionCallback),
	}, nil
}

func (p *FirebaseProvider) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	params := (&fbauth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)

	user, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, ErrAccountExists
		}
		if strings.Contains(err.Error(), "password") {
			return nil, ErrWeakCredential
		}
		return nil, err
	}

	id := &Identity{
		UID:         user.UID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}
	p.setCurrent(id)
	return id, nil
}

type signInResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?key=%s", p.endpoint, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	if out.Error != nil {
		switch {
		case strings.HasPrefix(out.Error.Message, "EMAIL_NOT_FOUND"):
			return nil, ErrNotFound
		case strings.HasPrefix(out.Error.Message, "INVALID_PASSWORD"),
			strings.HasPrefix(out.Error.Message, "INVALID_LOGIN_CREDENTIALS"):
			return nil, ErrBadCredential
		default:
			return nil, fmt.Errorf("firebase sign-in: %s", out.Error.Message)
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("firebase sign-in http %d", resp.StatusCode)
	}

	id := &Identity{
		UID:         out.LocalID,
		Email:       out.Email,
		DisplayName: out.DisplayName,
	}
	p.setCurrent(id)
	return id, nil
}

func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	notify(watchers, nil)

	if current == nil {
		return nil
	}
	// Revoking refresh tokens invalidates the remote session.
	return p.client.RevokeRefreshTokens(ctx, current.UID)
}

func (p *FirebaseProvider) OnSessionChange(cb SessionCallback) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = cb
	current := p.current
	p.mu.Unlock()

	cb(current)

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

func (p *FirebaseProvider) setCurrent(id *Identity) {
	p.mu.Lock()
	p.current = id
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	notify(watchers, id)
}

func (p *FirebaseProvider) snapshotWatchers() []SessionCallback {
	out := make([]SessionCallback, 0, len(p.watchers))
	for _, cb := range p.watchers {
		out = append(out, cb)
	}
	return out
}

// VerifyToken implements TokenVerifier against Firebase ID tokens.
func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (string, string, error) {
	decoded, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", "", ErrBadCredential
	}
	email, _ := decoded.Claims["email"].(string)
	return decoded.UID, email, nil
}
