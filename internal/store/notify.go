package store

import "github.com/mesh-intelligence/fleetsync/pkg/types"

// ObjectRef identifies a mutated object in a change notification.
type ObjectRef struct {
	Kind       types.Kind
	ID         string
	RecordName string
}

// ChangeSet carries the object references touched by one committed store
// mutation. Subscribers must treat it as an eventually-consistent signal to
// re-query, not as a transactional snapshot.
type ChangeSet struct {
	Inserted []ObjectRef
	Updated  []ObjectRef
	Deleted  []ObjectRef
}

// Empty reports whether the change set carries no references.
func (c ChangeSet) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Subscribe registers a change listener and returns its channel plus a
// cancel function. The channel is buffered; a subscriber that falls behind
// loses notifications rather than blocking writers.
func (s *Store) Subscribe() (<-chan ChangeSet, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextS
	s.nextS++
	ch := make(chan ChangeSet, 16)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// publish fans a change set out to all subscribers after a commit.
func (s *Store) publish(cs ChangeSet) {
	if cs.Empty() {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- cs:
		default:
			s.log.Warn("dropping change notification for slow subscriber")
		}
	}
}
