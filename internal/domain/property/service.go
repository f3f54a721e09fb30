package property

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Subscription is a running listener. Done closes when it stops, either
// through Unsubscribe or because the store failed; Err reports the failure.
type Subscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Unsubscribe stops the listener. It is safe to call more than once.
func (s *Subscription) Unsubscribe() { s.once.Do(s.cancel) }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err is nil while running and after a clean stop.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Add(ctx context.Context, in CreatePropertyInput) (string, error) {
	in.Trim()
	if err := in.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, in.Fields())
	if err != nil {
		log.Printf("[properties] error adding property: %v", err)
		return "", err
	}
	log.Printf("[properties] property added with ID: %s", id)
	return id, nil
}

func (s *Service) List(ctx context.Context) ([]Property, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		log.Printf("[properties] error getting properties: %v", err)
		return nil, err
	}
	log.Printf("[properties] retrieved %d properties", len(out))
	return out, nil
}

// Update merges in into the record at id. Existence is not checked first;
// a missing record surfaces as ErrNotFound from the store.
func (s *Service) Update(ctx context.Context, id string, in UpdatePropertyInput) error {
	if err := checkID(id); err != nil {
		return err
	}
	in.Trim()
	if err := in.Validate(); err != nil {
		return err
	}

	if err := s.store.Update(ctx, id, in.Fields()); err != nil {
		log.Printf("[properties] error updating property %s: %v", id, err)
		return err
	}
	log.Printf("[properties] property updated: %s", id)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		log.Printf("[properties] error deleting property %s: %v", id, err)
		return err
	}
	log.Printf("[properties] property deleted: %s", id)
	return nil
}

// Subscribe delivers the full collection to fn on every change until the
// subscription is stopped or ctx is done. fn runs on a single goroutine
// owned by the subscription.
func (s *Service) Subscribe(ctx context.Context, fn func([]Property)) (*Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: callback is required", ErrBadRequest)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer sub.Unsubscribe()
		err := s.store.Watch(ctx, func(props []Property) {
			log.Printf("[properties] real-time update: retrieved %d properties", len(props))
			fn(props)
		})
		if err != nil {
			log.Printf("[properties] real-time listener stopped: %v", err)
			sub.err = err
		}
	}()

	return sub, nil
}

// Search lists the collection and keeps records whose plot number, district,
// block or owner info contains term, ignoring case. Order is preserved and
// an empty term matches everything.
func (s *Service) Search(ctx context.Context, term string) ([]Property, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := Filter(all, term)
	log.Printf("[properties] search found %d matching properties", len(out))
	return out, nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrBadRequest)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: invalid id", ErrBadRequest)
	}
	return nil
}
