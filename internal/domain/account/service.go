package account

import (
	"context"
	"log"
	"sync"
	"time"

	"property-registry/backend/internal/domain/session"
)

// Observer receives every auth state change for uid. A nil user means
// signed out.
type Observer func(uid string, u *User)

const mirrorTimeout = 5 * time.Second

type change struct {
	uid  string
	user *User
}

// Service tracks who is signed in. The session of a request is the Caller
// carried by its context, so one process serves many users.
type Service struct {
	provider Provider
	sessions session.Store

	mu        sync.RWMutex
	users     map[string]*User // signed in through this process, no tokens
	observers []Observer

	// emitMu orders deliveries on changes; closed is guarded by it.
	emitMu  sync.Mutex
	closed  bool
	changes chan change
	done    chan struct{}
}

// NewService starts the state observer, which mirrors every change into
// sessions when it is non-nil.
func NewService(provider Provider, sessions session.Store) *Service {
	s := &Service{
		provider: provider,
		sessions: sessions,
		users:    map[string]*User{},
		changes:  make(chan change, 16),
		done:     make(chan struct{}),
	}
	s.observers = []Observer{s.mirror}
	go s.watch()
	return s
}

// OnStateChanged registers fn for all later state changes.
func (s *Service) OnStateChanged(fn Observer) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Close stops the observer after pending changes are delivered.
func (s *Service) Close() {
	s.emitMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.changes)
	}
	s.emitMu.Unlock()
	<-s.done
}

// CreateAccount registers the user and signs them in. The returned user
// carries the tokens of that sign-in when the provider issued them.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (*User, error) {
	u, err := s.provider.CreateUser(ctx, email, password)
	if err != nil {
		log.Printf("[auth] error creating user account: %v", err)
		return nil, err
	}
	log.Printf("[auth] user account created: %s", u.Email)

	if signed, err := s.provider.SignInWithPassword(ctx, email, password); err == nil {
		u = signed
	} else {
		log.Printf("[auth] sign-in after account creation failed: %v", err)
	}
	s.setUser(u.UID, u)
	return u, nil
}

// SignIn returns the user with its ID and refresh tokens. Only this call
// and CreateAccount ever hand tokens out.
func (s *Service) SignIn(ctx context.Context, email, password string) (*User, error) {
	u, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		log.Printf("[auth] error signing in: %v", err)
		return nil, err
	}
	log.Printf("[auth] user signed in: %s", u.Email)
	s.setUser(u.UID, u)
	return u, nil
}

// SignOut revokes the caller's refresh tokens. Without a caller it is a
// no-op.
func (s *Service) SignOut(ctx context.Context) error {
	c, ok := CallerFrom(ctx)
	if !ok {
		return nil
	}
	if err := s.provider.RevokeSessions(ctx, c.UID); err != nil {
		log.Printf("[auth] error signing out: %v", err)
		return err
	}
	log.Println("[auth] user signed out")
	s.setUser(c.UID, nil)
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, newPassword string) error {
	c, ok := CallerFrom(ctx)
	if !ok {
		return ErrNotSignedIn
	}
	if err := s.provider.UpdatePassword(ctx, c.UID, newPassword); err != nil {
		log.Printf("[auth] error updating password: %v", err)
		return err
	}
	log.Println("[auth] password updated")
	return nil
}

// CurrentUser returns the caller's profile without tokens, or nil when ctx
// has no caller.
func (s *Service) CurrentUser(ctx context.Context) *User {
	c, ok := CallerFrom(ctx)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[c.UID]; ok {
		cp := *u
		return &cp
	}
	// signed in through another instance
	return &User{UID: c.UID, Email: c.Email}
}

func (s *Service) IsAuthenticated(ctx context.Context) bool {
	_, ok := CallerFrom(ctx)
	return ok
}

func (s *Service) setUser(uid string, u *User) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	var next *User
	if u != nil {
		cp := *u
		cp.IDToken, cp.RefreshToken = "", ""
		next = &cp
	}

	s.mu.Lock()
	if next != nil {
		s.users[uid] = next
	} else {
		delete(s.users, uid)
	}
	s.mu.Unlock()

	if s.closed {
		return
	}
	ch := change{uid: uid}
	if next != nil {
		cp := *next
		ch.user = &cp
	}
	s.changes <- ch
}

func (s *Service) watch() {
	defer close(s.done)
	for ch := range s.changes {
		s.mu.RLock()
		observers := append([]Observer(nil), s.observers...)
		s.mu.RUnlock()

		for _, fn := range observers {
			fn(ch.uid, ch.user)
		}
	}
}

// mirror copies the auth state into the session indicator.
func (s *Service) mirror(uid string, u *User) {
	if s.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if u != nil {
		log.Printf("[auth] user is signed in: %s", u.Email)
		err := s.sessions.Put(ctx, session.Indicator{LoggedIn: true, Email: u.Email, UserID: uid})
		if err != nil {
			log.Printf("[auth] session mirror failed: %v", err)
		}
		return
	}

	log.Println("[auth] user is signed out")
	if err := s.sessions.Clear(ctx, uid); err != nil {
		log.Printf("[auth] session mirror failed: %v", err)
	}
}
