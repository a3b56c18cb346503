package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestLocalSignUpAndSignIn(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	id, err := p.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan Kowal")
	require.NoError(t, err)
	assert.NotEmpty(t, id.UID)
	assert.Equal(t, "jan@example.edu", id.Email)
	assert.Equal(t, "Jan Kowal", id.DisplayName)

	signedIn, err := p.SignIn(context.Background(), "jan@example.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id.UID, signedIn.UID)
}

func TestLocalSignUpRejectsDuplicates(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	_, err := p.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)

	_, err = p.SignUp(context.Background(), "jan@example.edu", "other12", "Jan Again")
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestLocalSignUpRejectsShortPassword(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	_, err := p.SignUp(context.Background(), "jan@example.edu", "12345", "Jan")
	assert.ErrorIs(t, err, ErrWeakCredential)
}

func TestLocalSignInErrors(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)
	_, err := p.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)

	_, err = p.SignIn(context.Background(), "nobody@example.edu", "secret1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.SignIn(context.Background(), "jan@example.edu", "wrong-password")
	assert.ErrorIs(t, err, ErrBadCredential)
}

func TestLocalSessionCallbacks(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	var seen []*Identity
	cancel := p.OnSessionChange(func(id *Identity) {
		seen = append(seen, id)
	})
	defer cancel()

	// Immediate notification with no session.
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	id, err := p.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.NotNil(t, seen[1])
	assert.Equal(t, id.UID, seen[1].UID)

	require.NoError(t, p.SignOut(context.Background()))
	require.Len(t, seen, 3)
	assert.Nil(t, seen[2])
}

func TestLocalCallbackCancel(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	calls := 0
	cancel := p.OnSessionChange(func(*Identity) { calls++ })
	cancel()

	_, err := p.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "only the immediate notification is delivered")
}

func TestLocalTokenRoundTrip(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	id, err := p.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)

	token, err := p.Token(id.UID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	uid, email, err := p.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, id.UID, uid)
	assert.Equal(t, "jan@example.edu", email)
}

func TestLocalTokenUnknownAccount(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	_, err := p.Token("no-such-uid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalVerifyTokenRejectsGarbage(t *testing.T) {
	p := NewLocalProvider(testSecret, time.Hour)

	_, _, err := p.VerifyToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrBadCredential)
}

func TestLocalVerifyTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewLocalProvider("other-secret", time.Hour)
	id, err := issuer.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)
	token, err := issuer.Token(id.UID)
	require.NoError(t, err)

	verifier := NewLocalProvider(testSecret, time.Hour)
	_, _, err = verifier.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrBadCredential)
}

func TestPersistentAccountsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")

	first, err := NewPersistentLocalProvider(path, testSecret, time.Hour)
	require.NoError(t, err)
	id, err := first.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan Kowal")
	require.NoError(t, err)

	second, err := NewPersistentLocalProvider(path, testSecret, time.Hour)
	require.NoError(t, err)

	signedIn, err := second.SignIn(context.Background(), "jan@example.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id.UID, signedIn.UID)
	assert.Equal(t, "Jan Kowal", signedIn.DisplayName)

}

func TestPersistentProviderStartsSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")

	first, err := NewPersistentLocalProvider(path, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = first.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)

	// Accounts persist; the live session does not.
	second, err := NewPersistentLocalProvider(path, testSecret, time.Hour)
	require.NoError(t, err)

	notified := false
	var current *Identity
	cancel := second.OnSessionChange(func(i *Identity) {
		notified = true
		current = i
	})
	defer cancel()

	require.True(t, notified)
	assert.Nil(t, current)
}

func TestPersistentProviderMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")

	p, err := NewPersistentLocalProvider(path, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = p.SignIn(context.Background(), "nobody@example.edu", "secret1")
	assert.ErrorIs(t, err, ErrNotFound)
}
