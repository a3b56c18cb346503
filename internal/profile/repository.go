// Package profile provides the two-tier profile document repository: an
// authoritative remote store plus a durable local cache, hidden behind one
// type so callers never know which tier answered.
package profile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/storage"
)

// ErrUnavailable reports that the primary store could not be reached and no
// fallback data existed. Most repository paths absorb it; it only surfaces
// where the caller explicitly asked for the primary tier.
var ErrUnavailable = errors.New("document store unreachable")

// PrimaryStore is the remote document store tier. Get returns (nil, nil) when
// no document exists for the uid.
type PrimaryStore interface {
	Get(ctx context.Context, uid string) (models.Document, error)
	Set(ctx context.Context, uid string, doc models.Document, merge bool) error
	Ping(ctx context.Context) error
}

// FallbackCache is the local durable tier holding per-user mirrors.
type FallbackCache interface {
	Get(uid string) (models.Document, bool, error)
	Put(uid string, doc models.Document) error
	Delete(uid string) error
}

// CacheTier adapts storage.Cache to the FallbackCache contract using the
// profile key space.
type CacheTier struct {
	Cache *storage.Cache
}

func (t CacheTier) Get(uid string) (models.Document, bool, error) {
	var doc models.Document
	ok, err := t.Cache.Get(storage.ProfileKey(uid), &doc)
	if err != nil || !ok {
		return nil, false, err
	}
	return doc, true, nil
}

func (t CacheTier) Put(uid string, doc models.Document) error {
	return t.Cache.Put(storage.ProfileKey(uid), doc)
}

func (t CacheTier) Delete(uid string) error {
	return t.Cache.Delete(storage.ProfileKey(uid))
}

// ReachabilityFunc receives the outcome of every primary-store round trip.
// Diagnostics only; the repository never consults it.
type ReachabilityFunc func(online bool)

// Repository reconciles the two tiers. A nil primary store puts it in offline
// mode where the cache is the sole source, mirroring the app's static mode.
type Repository struct {
	primary        PrimaryStore
	fallback       FallbackCache
	log            *zap.Logger
	onReachability ReachabilityFunc
}

func NewRepository(primary PrimaryStore, fallback FallbackCache, log *zap.Logger, onReachability ReachabilityFunc) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{
		primary:        primary,
		fallback:       fallback,
		log:            log,
		onReachability: onReachability,
	}
}

func (r *Repository) report(online bool) {
	if r.onReachability != nil {
		r.onReachability(online)
	}
}

// Probe checks whether the primary tier answers within the deadline.
func (r *Repository) Probe(ctx context.Context, timeout time.Duration) bool {
	if r.primary == nil {
		r.report(false)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.primary.Ping(ctx); err != nil {
		r.log.Warn("document store unreachable, using local cache", zap.Error(err))
		r.report(false)
		return false
	}
	r.report(true)
	return true
}

// Fetch returns the profile document for uid, or (nil, nil) when neither tier
// has one. Remote failure degrades silently to the cache.
func (r *Repository) Fetch(ctx context.Context, uid string) (models.Document, error) {
	if r.primary != nil {
		doc, err := r.primary.Get(ctx, uid)
		if err == nil {
			r.report(true)
			if doc != nil {
				// Keep the fast-path mirror warm.
				if cerr := r.fallback.Put(uid, doc); cerr != nil {
					r.log.Warn("failed to mirror profile to cache", zap.String("uid", uid), zap.Error(cerr))
				}
				return doc, nil
			}
			// Remote says absent; an offline-created document may still live
			// in the cache until the next reconciling write.
		} else {
			r.log.Warn("profile fetch failed, falling back to cache", zap.String("uid", uid), zap.Error(err))
			r.report(false)
		}
	}

	doc, ok, err := r.fallback.Get(uid)
	if err != nil {
		r.log.Warn("cache read failed", zap.String("uid", uid), zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return doc, nil
}

// Create writes a brand-new document. The cache is mirrored on remote success
// and is the sole target when the remote write fails.
func (r *Repository) Create(ctx context.Context, uid string, doc models.Document) (models.Document, error) {
	if r.primary != nil {
		if err := r.primary.Set(ctx, uid, doc, false); err != nil {
			r.log.Warn("remote profile create failed, cache only", zap.String("uid", uid), zap.Error(err))
			r.report(false)
		} else {
			r.report(true)
		}
	}

	if err := r.fallback.Put(uid, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update merge-writes partial into the document for uid (create-if-absent)
// and then overwrites the cache with the merged result. The cache write is
// ordered strictly after the remote attempt resolves so the cache never holds
// a value the remote was not offered. When the remote call fails the cache
// still receives the locally computed merge: accepted staleness until the
// next reconciliation.
func (r *Repository) Update(ctx context.Context, uid string, partial models.Document) (models.Document, error) {
	current, err := r.Fetch(ctx, uid)
	if err != nil {
		return nil, err
	}

	merged := current.Merge(partial)
	if merged.UID() == "" {
		merged[models.FieldUID] = uid
	}
	merged[models.FieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)

	if r.primary != nil {
		if err := r.primary.Set(ctx, uid, merged, true); err != nil {
			r.log.Warn("remote profile update failed, keeping local merge", zap.String("uid", uid), zap.Error(err))
			r.report(false)
		} else {
			r.report(true)
		}
	}

	if err := r.fallback.Put(uid, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// DropLocal removes the local mirror for uid. The remote document is never
// deleted; there is no account-deletion flow.
func (r *Repository) DropLocal(uid string) error {
	return r.fallback.Delete(uid)
}
