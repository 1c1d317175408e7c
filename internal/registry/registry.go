// Package registry maps user identifiers to their isolated ledger stores.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/storage"
)

// ErrRegistryClosed is returned by Resolve after Close.
var ErrRegistryClosed = errors.New("registry closed")

const storeFile = "ledger.db"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateUserID rejects identifiers that are unsafe as a directory name.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) || strings.Contains(userID, "..") {
		return fmt.Errorf("%w %q", core.ErrInvalidUserID, userID)
	}
	return nil
}

// canonicalUserID validates userID and folds it to lower case. User ids are
// case-insensitive so that "Alice" and "alice" never reach the same file
// through two stores on a case-insensitive filesystem.
func canonicalUserID(userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return strings.ToLower(userID), nil
}

// Handle is a resolved user's ledger. Callers pass it explicitly to every
// ledger operation; there is no ambient current user.
type Handle struct {
	*storage.Store
	UserID string
}

// Registry owns one open store per user for the lifetime of the process.
type Registry struct {
	dataDir string
	opts    storage.Options
	logger  *log.Logger

	mu     sync.RWMutex
	stores map[string]*Handle
	closed bool

	provision singleflight.Group
}

// New creates a registry rooted at dataDir. Stores live at
// <dataDir>/users/<userID>/ledger.db.
func New(dataDir string, opts storage.Options, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Registry{
		dataDir: dataDir,
		opts:    opts,
		logger:  logger.WithComponent(log.ComponentRegistry),
		stores:  make(map[string]*Handle),
	}
}

// Resolve returns the store for userID, provisioning it on first use.
// Concurrent first calls for the same user share a single provisioning.
func (r *Registry) Resolve(ctx context.Context, userID string) (*Handle, error) {
	userID, err := canonicalUserID(userID)
	if err != nil {
		return nil, err
	}

	if h, err := r.lookup(userID); h != nil || err != nil {
		return h, err
	}

	v, err, _ := r.provision.Do(userID, func() (any, error) {
		// A previous flight may have finished between lookup and Do.
		if h, err := r.lookup(userID); h != nil || err != nil {
			return h, err
		}

		s, err := storage.Open(r.storePath(userID), r.opts)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to provision store", log.FieldUserID, userID, log.FieldError, err)
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			s.Close()
			return nil, ErrRegistryClosed
		}
		h := &Handle{Store: s, UserID: userID}
		r.stores[userID] = h
		r.logger.InfoContext(ctx, "Store ready", log.FieldUserID, userID)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Lookup returns the store of an already provisioned user and ErrNotFound
// for a user who has none. It never creates a store.
func (r *Registry) Lookup(ctx context.Context, userID string) (*Handle, error) {
	userID, err := canonicalUserID(userID)
	if err != nil {
		return nil, err
	}
	if h, err := r.lookup(userID); h != nil || err != nil {
		return h, err
	}
	if _, err := os.Stat(r.storePath(userID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NotFound("user", userID)
		}
		return nil, &core.StorageError{Op: "stat store", Err: errors.Unwrap(err)}
	}
	return r.Resolve(ctx, userID)
}

func (r *Registry) storePath(userID string) string {
	return filepath.Join(r.dataDir, "users", userID, storeFile)
}

func (r *Registry) lookup(userID string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	return r.stores[userID], nil
}

// Users returns the IDs of users with an open store, sorted.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases every open store. Further Resolve calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for id, h := range r.stores {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %s: %w", id, err))
		}
	}
	r.stores = nil
	r.logger.Info("Registry closed")
	return errors.Join(errs...)
}
