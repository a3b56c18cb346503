package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/almahub/backend/internal/config"
	"github.com/almahub/backend/internal/identity"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/profile"
	"github.com/almahub/backend/internal/session"
	"github.com/almahub/backend/internal/storage"
)

const readyTimeout = 15 * time.Second

// appSession bundles a running session store with its collaborators for the
// lifetime of one command.
type appSession struct {
	store    *session.Store
	provider identity.Provider
	snaps    <-chan session.Snapshot
	shutdown func()
}

// openSession builds the store from configuration, starts it, and waits until
// the restored (or absent) session has settled.
func openSession(ctx context.Context) (*appSession, error) {
	cfg := config.Load()

	logger := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = dev
	}

	var provider identity.Provider
	if cfg.FirebaseProjectID != "" {
		fb, err := identity.NewFirebaseProvider(ctx, identity.FirebaseConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseCredentials,
			APIKey:          cfg.FirebaseAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing Firebase: %w", err)
		}
		provider = fb
	} else {
		lp, err := identity.NewPersistentLocalProvider(
			filepath.Join(cfg.DataDir, "accounts.json"), cfg.JWTSecret, cfg.JWTExpiration)
		if err != nil {
			return nil, fmt.Errorf("opening account store: %w", err)
		}
		provider = lp
	}

	bcast := storage.NewBroadcaster()
	cache, err := storage.NewCache(cfg.DataDir, models.CacheSchemaVersion, bcast)
	if err != nil {
		return nil, fmt.Errorf("opening local cache: %w", err)
	}

	var primary profile.PrimaryStore
	var closeMongo func()
	if cfg.MongoURI != "" {
		ms, err := profile.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			printWarning("document store unreachable, working from local cache")
		} else {
			primary = ms
			closeMongo = func() { ms.Close(context.Background()) }
		}
	}

	store := session.New(provider, primary, cache, bcast, logger, session.Options{
		SignOutTimeout: cfg.SignOutTimeout,
		ProbeTimeout:   cfg.ProbeTimeout,
	})
	snaps, cancelWatch := store.Watch()
	store.Start(ctx)

	app := &appSession{
		store:    store,
		provider: provider,
		snaps:    snaps,
		shutdown: func() {
			cancelWatch()
			store.Close()
			if closeMongo != nil {
				closeMongo()
			}
		},
	}

	if _, err := app.waitFor(func(s session.Snapshot) bool {
		return s.Status == session.StatusReady
	}); err != nil {
		app.shutdown()
		return nil, err
	}
	return app, nil
}

// waitFor blocks until a snapshot satisfies pred or the ready timeout lapses.
func (a *appSession) waitFor(pred func(session.Snapshot) bool) (session.Snapshot, error) {
	if snap := a.store.Snapshot(); pred(snap) {
		return snap, nil
	}
	deadline := time.After(readyTimeout)
	for {
		select {
		case snap, ok := <-a.snaps:
			if !ok {
				return session.Snapshot{}, fmt.Errorf("session store closed")
			}
			if pred(snap) {
				return snap, nil
			}
		case <-deadline:
			return session.Snapshot{}, fmt.Errorf("timed out waiting for session state")
		}
	}
}
