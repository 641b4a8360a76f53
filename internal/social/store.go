package social

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"looped/infrastructure"
	"looped/internal/backend"
	"looped/internal/profile"
)

const refetchTimeout = 10 * time.Second

// operation is the kind of call running against a target.
type operation int

const (
	opFollow operation = iota + 1
	opUnfollow
)

// ProfileLookup resolves a user's profile. A missing profile is nil, nil.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*profile.User, error)
}

// Store mirrors the followers, following and follow requests of one user.
//
// Mutations are applied to the mirror before the backend call and undone if
// the call fails, so after a failed call the mirror reads exactly as it did
// before. Realtime changes trigger a full Refetch, which is authoritative.
type Store struct {
	userID   string
	repo     Repository
	profiles ProfileLookup
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu        sync.Mutex
	followers map[string]struct{}
	following map[string]struct{}
	sent      map[string]struct{}
	requests  []FollowRequest
	// handled holds requests accepted or rejected in this session. A request
	// in here is never acted on twice and never brought back by a refetch
	// while its backend call is running.
	handled  map[string]RequestState
	inFlight map[string]operation

	refetchGen uint64
	appliedGen uint64

	subs    []*backend.Subscription
	started bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewStore(userID string, repo Repository, profiles ProfileLookup, logger *slog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		userID:    userID,
		repo:      repo,
		profiles:  profiles,
		logger:    logger.With("user_id", userID),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		followers: make(map[string]struct{}),
		following: make(map[string]struct{}),
		sent:      make(map[string]struct{}),
		handled:   make(map[string]RequestState),
		inFlight:  make(map[string]operation),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Store) UserID() string {
	return s.userID
}

func (s *Store) IsFollowing(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.following[userID]
	return ok
}

// HasRequested reports whether a follow request to userID is pending.
func (s *Store) HasRequested(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sent[userID]
	return ok
}

func (s *Store) Followers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.followers)
}

func (s *Store) Following() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.following)
}

func (s *Store) SentRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.sent)
}

// Requests returns the pending incoming requests, oldest first.
func (s *Store) Requests() []FollowRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FollowRequest(nil), s.requests...)
}

func (s *Store) State(requestID string) RequestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.handled[requestID]; ok {
		return st
	}
	if indexOf(s.requests, requestID) >= 0 {
		return RequestPending
	}
	return RequestUnknown
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		UserID:       s.userID,
		Followers:    sortedKeys(s.followers),
		Following:    sortedKeys(s.following),
		Requests:     append([]FollowRequest{}, s.requests...),
		SentRequests: sortedKeys(s.sent),
	}
}

// Follow follows a public account or sends a follow request to a private
// one. Following someone already followed or requested, or someone a follow
// is already running for, changes nothing. While an Unfollow of the same
// target is running it fails with ErrRequestInFlight.
func (s *Store) Follow(ctx context.Context, targetID string) (FollowOutcome, error) {
	if targetID == s.userID {
		return OutcomeUnchanged, infrastructure.ErrCannotFollowSelf
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return OutcomeUnchanged, infrastructure.ErrSessionClosed
	}
	if _, ok := s.following[targetID]; ok {
		s.mu.Unlock()
		return OutcomeUnchanged, nil
	}
	if _, ok := s.sent[targetID]; ok {
		s.mu.Unlock()
		return OutcomeUnchanged, nil
	}
	if running, ok := s.begin(targetID, opFollow); !ok {
		s.mu.Unlock()
		if running == opFollow {
			return OutcomeUnchanged, nil
		}
		return OutcomeUnchanged, infrastructure.ErrRequestInFlight
	}
	s.mu.Unlock()
	defer s.end(targetID)

	target, err := s.profiles.GetProfile(ctx, targetID)
	if err != nil {
		return OutcomeUnchanged, err
	}
	if target == nil {
		return OutcomeUnchanged, infrastructure.ErrUserNotFound
	}

	if target.IsPublic {
		return s.followPublic(ctx, targetID)
	}
	return s.requestFollow(ctx, targetID)
}

func (s *Store) followPublic(ctx context.Context, targetID string) (FollowOutcome, error) {
	s.mu.Lock()
	s.following[targetID] = struct{}{}
	s.mu.Unlock()

	err := s.repo.InsertEdge(ctx, FollowEdge{FollowerID: s.userID, FollowingID: targetID, CreatedAt: s.now().UTC()})
	if err != nil && !errors.Is(err, infrastructure.ErrConflict) {
		s.mu.Lock()
		delete(s.following, targetID)
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "failed to follow", "target_id", targetID, "error", err)
		return OutcomeUnchanged, err
	}
	return OutcomeFollowed, nil
}

func (s *Store) requestFollow(ctx context.Context, targetID string) (FollowOutcome, error) {
	me, err := s.profiles.GetProfile(ctx, s.userID)
	if err != nil {
		return OutcomeUnchanged, err
	}
	snapshot := ProfileSnapshot{ID: s.userID}
	if me != nil {
		snapshot = SnapshotOf(me)
	}

	s.mu.Lock()
	s.sent[targetID] = struct{}{}
	s.mu.Unlock()

	err = s.repo.InsertRequest(ctx, FollowRequest{
		ID:              s.newID(),
		FollowerID:      s.userID,
		FollowingID:     targetID,
		CreatedAt:       s.now().UTC(),
		FollowerProfile: snapshot,
	})
	if err != nil && !errors.Is(err, infrastructure.ErrConflict) {
		s.mu.Lock()
		delete(s.sent, targetID)
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "failed to send follow request", "target_id", targetID, "error", err)
		return OutcomeUnchanged, err
	}
	return OutcomeRequested, nil
}

// Unfollow removes the edge to targetID, or withdraws a pending request to
// it. It is a no-op when there is neither, and fails with
// ErrRequestInFlight while a Follow of the same target is running.
func (s *Store) Unfollow(ctx context.Context, targetID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return infrastructure.ErrSessionClosed
	}
	_, wasFollowing := s.following[targetID]
	_, wasSent := s.sent[targetID]
	if !wasFollowing && !wasSent {
		s.mu.Unlock()
		return nil
	}
	if running, ok := s.begin(targetID, opUnfollow); !ok {
		s.mu.Unlock()
		if running == opUnfollow {
			return nil
		}
		return infrastructure.ErrRequestInFlight
	}
	if wasFollowing {
		delete(s.following, targetID)
	} else {
		delete(s.sent, targetID)
	}
	s.mu.Unlock()
	defer s.end(targetID)

	var err error
	if wasFollowing {
		_, err = s.repo.DeleteEdge(ctx, s.userID, targetID)
	} else {
		_, err = s.repo.DeleteRequestBetween(ctx, s.userID, targetID)
	}
	if err != nil {
		s.mu.Lock()
		if wasFollowing {
			s.following[targetID] = struct{}{}
		} else {
			s.sent[targetID] = struct{}{}
		}
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "failed to unfollow", "target_id", targetID, "error", err)
		return err
	}
	return nil
}

// AcceptFollowRequest turns a pending request into a follower. The request
// leaves the pending list before any backend call, so a concurrent reject of
// the same id finds nothing to act on. Unknown ids are ignored.
func (s *Store) AcceptFollowRequest(ctx context.Context, requestID string) error {
	req, pos, ok, err := s.take(requestID, RequestAccepted)
	if err != nil || !ok {
		return err
	}

	s.mu.Lock()
	_, wasFollower := s.followers[req.FollowerID]
	s.followers[req.FollowerID] = struct{}{}
	s.mu.Unlock()

	rollback := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !wasFollower {
			delete(s.followers, req.FollowerID)
		}
		s.restore(req, pos)
	}

	err = s.repo.InsertEdge(ctx, FollowEdge{FollowerID: req.FollowerID, FollowingID: s.userID, CreatedAt: s.now().UTC()})
	inserted := err == nil
	if err != nil && !errors.Is(err, infrastructure.ErrConflict) {
		rollback()
		s.logger.ErrorContext(ctx, "failed to accept follow request", "request_id", requestID, "error", err)
		return err
	}

	if _, err := s.repo.DeleteRequest(ctx, req.ID); err != nil {
		if inserted {
			if _, cerr := s.repo.DeleteEdge(ctx, req.FollowerID, s.userID); cerr != nil {
				s.logger.ErrorContext(ctx, "failed to undo accepted follow", "request_id", requestID, "error", cerr)
			}
		}
		rollback()
		s.logger.ErrorContext(ctx, "failed to remove accepted follow request", "request_id", requestID, "error", err)
		return err
	}
	return nil
}

// RejectFollowRequest drops a pending request without creating an edge.
// Unknown ids are ignored.
func (s *Store) RejectFollowRequest(ctx context.Context, requestID string) error {
	req, pos, ok, err := s.take(requestID, RequestRejected)
	if err != nil || !ok {
		return err
	}

	if _, err := s.repo.DeleteRequest(ctx, req.ID); err != nil {
		s.mu.Lock()
		s.restore(req, pos)
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "failed to reject follow request", "request_id", requestID, "error", err)
		return err
	}
	return nil
}

// Refetch reloads everything from the backend and replaces the mirror. When
// two refetches overlap, the one started last wins.
func (s *Store) Refetch(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return infrastructure.ErrSessionClosed
	}
	s.refetchGen++
	gen := s.refetchGen
	s.mu.Unlock()

	var (
		followers, following []FollowEdge
		incoming, outgoing   []FollowRequest
	)
	err := infrastructure.TimeOperation(ctx, s.logger, "social.Refetch", func() error {
		var err error
		if followers, err = s.repo.Followers(ctx, s.userID); err != nil {
			return err
		}
		if following, err = s.repo.Following(ctx, s.userID); err != nil {
			return err
		}
		if incoming, err = s.repo.IncomingRequests(ctx, s.userID); err != nil {
			return err
		}
		outgoing, err = s.repo.OutgoingRequests(ctx, s.userID)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to refetch social graph", "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.appliedGen {
		return nil
	}
	s.appliedGen = gen

	s.followers = make(map[string]struct{}, len(followers))
	for _, e := range followers {
		s.followers[e.FollowerID] = struct{}{}
	}
	s.following = make(map[string]struct{}, len(following))
	for _, e := range following {
		s.following[e.FollowingID] = struct{}{}
	}
	s.sent = make(map[string]struct{}, len(outgoing))
	for _, r := range outgoing {
		s.sent[r.FollowingID] = struct{}{}
	}
	s.requests = s.requests[:0]
	for _, r := range incoming {
		if _, done := s.handled[r.ID]; done {
			continue
		}
		s.requests = append(s.requests, r)
	}
	return nil
}

// Start loads the mirror and subscribes to changes of the four slices it is
// built from. Every change event triggers a full Refetch.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return infrastructure.ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.Refetch(ctx); err != nil {
		s.reset()
		return err
	}

	watches := []func(context.Context, string, func(backend.ChangeEvent)) (*backend.Subscription, error){
		s.repo.WatchFollowers,
		s.repo.WatchFollowing,
		s.repo.WatchIncoming,
		s.repo.WatchOutgoing,
	}
	subs := make([]*backend.Subscription, 0, len(watches))
	for _, watch := range watches {
		sub, err := watch(ctx, s.userID, s.onChange)
		if err != nil {
			for _, prev := range subs {
				s.repo.Unwatch(prev)
			}
			s.reset()
			return err
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		for _, sub := range subs {
			s.repo.Unwatch(sub)
		}
		return infrastructure.ErrSessionClosed
	}
	s.subs = subs
	return nil
}

// Close drops every subscription. Further mutations fail with
// ErrSessionClosed.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		s.repo.Unwatch(sub)
	}
}

func (s *Store) onChange(event backend.ChangeEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, refetchTimeout)
	defer cancel()
	if err := s.Refetch(ctx); err != nil && !errors.Is(err, infrastructure.ErrSessionClosed) {
		s.logger.WarnContext(ctx, "refetch after change failed", "table", event.Table, "type", event.Type, "error", err)
	}
}

// take removes a pending request and marks it handled. ok is false when the
// request is unknown or already handled.
func (s *Store) take(requestID string, state RequestState) (FollowRequest, int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return FollowRequest{}, 0, false, infrastructure.ErrSessionClosed
	}
	if _, done := s.handled[requestID]; done {
		return FollowRequest{}, 0, false, nil
	}
	pos := indexOf(s.requests, requestID)
	if pos < 0 {
		return FollowRequest{}, 0, false, nil
	}
	req := s.requests[pos]
	s.requests = append(s.requests[:pos:pos], s.requests[pos+1:]...)
	s.handled[requestID] = state
	return req, pos, true, nil
}

// restore must be called with s.mu held.
func (s *Store) restore(req FollowRequest, pos int) {
	delete(s.handled, req.ID)
	if indexOf(s.requests, req.ID) >= 0 {
		return
	}
	if pos > len(s.requests) {
		pos = len(s.requests)
	}
	s.requests = append(s.requests[:pos], append([]FollowRequest{req}, s.requests[pos:]...)...)
}

// begin must be called with s.mu held. When another call is running for
// targetID it returns that call's operation and false.
func (s *Store) begin(targetID string, op operation) (operation, bool) {
	if running, busy := s.inFlight[targetID]; busy {
		return running, false
	}
	s.inFlight[targetID] = op
	return op, true
}

func (s *Store) end(targetID string) {
	s.mu.Lock()
	delete(s.inFlight, targetID)
	s.mu.Unlock()
}

func (s *Store) reset() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func indexOf(reqs []FollowRequest, id string) int {
	for i, r := range reqs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
