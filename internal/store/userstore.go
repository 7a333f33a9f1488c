package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/service"
)

var (
	// ErrUserNotFound is returned by Find when no user matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrAmbiguousUser is returned by Find when a name matches several users.
	ErrAmbiguousUser = errors.New("user name is ambiguous")
)

// UserState is a point-in-time snapshot of a UserStore.
type UserState struct {
	Users   []service.User
	Loading bool
	Err     *service.APIError
}

// UserStore owns the read-only list of assignable users.
type UserStore struct {
	svc service.Service
	log *logrus.Entry

	mu       sync.Mutex
	users    []service.User
	pending  int
	err      *service.APIError
	fetchSeq uint64

	subs broadcaster[UserState]
}

// NewUserStore creates an empty store backed by svc.
func NewUserStore(svc service.Service, opts ...Option) *UserStore {
	o := buildOptions(opts)
	return &UserStore{
		svc:   svc,
		log:   o.log,
		users: []service.User{},
	}
}

// State returns a copy of the current state.
func (s *UserStore) State() UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UserState{
		Users:   append([]service.User{}, s.users...),
		Loading: s.pending > 0,
		Err:     s.err.Clone(),
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
func (s *UserStore) Subscribe(fn func(UserState)) func() {
	return s.subs.subscribe(fn)
}

// Fetch replaces the user list. On failure the previous list is kept and
// Err is set; the error is not returned.
func (s *UserStore) Fetch(ctx context.Context) {
	s.mu.Lock()
	s.pending++
	s.err = nil
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()
	s.notify()
	defer s.release()

	log := s.log.WithField("operation", "store.FetchUsers")
	users, err := s.svc.ListUsers(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		log.WithField("seq", seq).Debug("dropping stale fetch result")
		return
	}
	if err != nil {
		s.err = service.AsAPIError(err).Clone()
		log.WithError(err).Warn("fetch users failed")
		return
	}
	s.users = append([]service.User{}, users...)
	log.WithField("count", len(users)).Debug("users fetched")
}

// ClearError dismisses the current error.
func (s *UserStore) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.notify()
}

// Find resolves ref against the loaded users: by exact id first, then by
// full name, case-insensitively.
func (s *UserStore) Find(ref string) (service.User, error) {
	ref = strings.TrimSpace(ref)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == ref {
			return u, nil
		}
	}

	want := normalizeName(ref)
	var matches []service.User
	for _, u := range s.users {
		if normalizeName(u.Name()) == want {
			matches = append(matches, u)
		}
	}
	switch len(matches) {
	case 0:
		return service.User{}, ErrUserNotFound
	case 1:
		return matches[0], nil
	default:
		return service.User{}, ErrAmbiguousUser
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (s *UserStore) release() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
	s.notify()
}

func (s *UserStore) notify() {
	s.subs.publish(s.State)
}
