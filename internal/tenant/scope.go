// Package tenant binds the tenant a unit of work operates on.
//
// A Scope is created per unit of work (an HTTP request, one outbox event) and
// carried in the context. Reading the tenant outside a bound scope is a
// programming error and returns ErrNotBound instead of an empty id.
package tenant

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrNotBound is returned when the tenant is read outside a bound scope.
	ErrNotBound = errors.New("tenant scope not bound")

	// ErrInvalidID is returned when binding an empty, overlong or malformed tenant id.
	ErrInvalidID = errors.New("invalid tenant id")
)

const maxIDLength = 64

// ID identifies a tenant.
type ID string

func (id ID) String() string {
	return string(id)
}

// ParseID validates a raw tenant identifier. Ids are ASCII letters, digits,
// '-' and '_' only, since they become tokens of broker subjects and keys.
func ParseID(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > maxIDLength {
		return "", ErrInvalidID
	}
	for i := 0; i < len(s); i++ {
		if !idByte(s[i]) {
			return "", ErrInvalidID
		}
	}
	return ID(s), nil
}

func idByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}

// Scope holds the tenant bound for one unit of work.
type Scope struct {
	mu    sync.RWMutex
	id    ID
	bound bool
}

// ID returns the bound tenant or ErrNotBound.
func (s *Scope) ID() (ID, error) {
	if s == nil {
		return "", ErrNotBound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.bound {
		return "", ErrNotBound
	}
	return s.id, nil
}

// MustID returns the bound tenant and panics if there is none.
func (s *Scope) MustID() ID {
	id, err := s.ID()
	if err != nil {
		panic(err)
	}
	return id
}

func (s *Scope) bind(id ID) {
	s.mu.Lock()
	s.id = id
	s.bound = true
	s.mu.Unlock()
}

func (s *Scope) clear() {
	s.mu.Lock()
	s.id = ""
	s.bound = false
	s.mu.Unlock()
}

type scopeKey struct{}

// Enter binds id in a fresh Scope carried by the returned context. The
// release function clears the scope; it is safe to call more than once and
// must be deferred by the caller.
func Enter(ctx context.Context, raw string) (context.Context, func(), error) {
	id, err := ParseID(raw)
	if err != nil {
		return ctx, func() {}, err
	}

	scope := &Scope{}
	scope.bind(id)

	var once sync.Once
	release := func() {
		once.Do(scope.clear)
	}
	return context.WithValue(ctx, scopeKey{}, scope), release, nil
}

// Run executes fn with id bound. The scope is cleared when fn returns, fails
// or panics.
func Run(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	scoped, release, err := Enter(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	return fn(scoped)
}

// ScopeFrom returns the scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeKey{}).(*Scope)
	return scope
}

// FromContext returns the tenant bound in ctx or ErrNotBound.
func FromContext(ctx context.Context) (ID, error) {
	return ScopeFrom(ctx).ID()
}
