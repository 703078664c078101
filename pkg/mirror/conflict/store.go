package conflict

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/copy"
	"github.com/foldmirror/foldmirror/pkg/mirror/core"
)

// Events is the UI notification surface the store drives (spec.md §6):
// queue-changed carries the full summary list sorted newest-first,
// open-session fires once when a session is created, and
// session-updated carries one session's remaining pending count.
type Events interface {
	QueueChanged(sessions []Summary)
	OpenSession(sessionID string)
	SessionUpdated(sessionID string, pendingCount int)
}

// NoopEvents discards all events; useful for tests and headless use.
type NoopEvents struct{}

func (NoopEvents) QueueChanged(sessions []Summary)            {}
func (NoopEvents) OpenSession(sessionID string)               {}
func (NoopEvents) SessionUpdated(sessionID string, count int) {}

// Store is the conflict review store. A single reader-writer lock guards
// the session map; resolution holds the write lock only for the
// per-item update, not for the whole batch (spec.md §5).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	sequence int64
	events   Events
	logger   *logging.Logger
	copyOpts copy.Options
}

// New constructs an empty Store.
func New(events Events, logger *logging.Logger) *Store {
	if events == nil {
		events = NoopEvents{}
	}
	return &Store{
		sessions: make(map[string]*Session),
		events:   events,
		logger:   logger,
		copyOpts: copy.Options{PreservePermissions: true, PreserveTimes: true},
	}
}

// nextSequence returns the next value of the store's per-process
// monotonic sequence, used both for session ids and as backup-name
// entropy.
func (s *Store) nextSequence() int64 {
	return atomic.AddInt64(&s.sequence, 1)
}

// Create allocates a new session from a batch of conflict candidates
// detected by one sync run. It is a no-op returning nil when candidates
// is empty, matching spec.md §4.9's "on detecting N>0 candidates".
func (s *Store) Create(taskID, taskName string, origin Origin, candidates []core.ConflictCandidate) *Session {
	if len(candidates) == 0 {
		return nil
	}

	now := time.Now()
	seq := s.nextSequence()
	sessionID := deterministicSessionID(taskID, now.UnixMilli(), seq)

	items := make([]Item, 0, len(candidates))
	for i, c := range candidates {
		items = append(items, Item{
			ID:           itemID(i + 1),
			RelativePath: c.RelativePath,
			SourcePath:   c.SourcePath,
			TargetPath:   c.TargetPath,
			Source:       c.Source,
			Target:       c.Target,
			Status:       StatusPending,
		})
	}

	session := &Session{
		ID:            sessionID,
		TaskID:        taskID,
		TaskName:      taskName,
		Origin:        origin,
		CreatedUnixMs: now.UnixMilli(),
		Items:         items,
	}

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	s.emitQueueChanged()
	s.events.OpenSession(sessionID)
	return session
}

func deterministicSessionID(taskID string, epochMs int64, seq int64) string {
	return "conflict-" + taskID + "-" + strconv.FormatInt(epochMs, 10) + "-" + strconv.FormatInt(seq, 10)
}

// Get returns a snapshot copy of a session's current state.
func (s *Store) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	clone := *session
	clone.Items = append([]Item(nil), session.Items...)
	return &clone, true
}

// Summaries returns every current session's summary, sorted newest-first
// by creation timestamp (spec.md §4.9).
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]Summary, 0, len(s.sessions))
	for _, session := range s.sessions {
		summaries = append(summaries, session.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedUnixMs > summaries[j].CreatedUnixMs
	})
	return summaries
}

func (s *Store) emitQueueChanged() {
	s.events.QueueChanged(s.Summaries())
}

// Resolve applies a batch of resolution requests to one session. Unknown
// item ids are recorded as failures and processing continues;
// non-Pending items are skipped silently. The write lock is held only
// for each individual item update (spec.md §5).
func (s *Store) Resolve(ctx context.Context, sessionID string, requests []ResolveRequest) (*ResolveOutcome, error) {
	outcome := &ResolveOutcome{}

	for _, req := range requests {
		resolved, err := s.resolveOne(ctx, sessionID, req)
		if err != nil {
			outcome.Failures = append(outcome.Failures, ResolveFailure{ItemID: req.ItemID, Message: err.Error()})
			continue
		}
		if resolved != nil {
			outcome.Resolved = append(outcome.Resolved, *resolved)
		}
	}

	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	pending := 0
	if ok {
		pending = session.PendingCount()
	}
	s.mu.RUnlock()
	if !ok {
		return outcome, errors.Errorf("no such conflict session %q", sessionID)
	}

	outcome.PendingCount = pending
	s.emitQueueChanged()
	s.events.SessionUpdated(sessionID, pending)

	return outcome, nil
}

// resolveOne applies a single resolution request, performing the
// preflight staleness check and the chosen copy/rename/skip action
// outside the write lock, then committing the result under the write
// lock.
func (s *Store) resolveOne(ctx context.Context, sessionID string, req ResolveRequest) (*Item, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	var item Item
	var itemFound bool
	if ok {
		for _, it := range session.Items {
			if it.ID == req.ItemID {
				item = it
				itemFound = true
				break
			}
		}
	}
	s.mu.RUnlock()

	if !ok {
		return nil, errors.Errorf("no such conflict session %q", sessionID)
	}
	if !itemFound {
		return nil, errors.Errorf("no such conflict item %q", req.ItemID)
	}
	if item.Status != StatusPending {
		// Non-Pending items are skipped silently: not an error, no
		// update, no failure recorded.
		return nil, nil
	}

	s.preflightStaleness(&item)

	now := time.Now()
	var applyErr error
	switch req.Action {
	case ActionSkip:
		item.Status = StatusSkipped
		item.Note = "User chose to skip"
		item.HasNote = true
	case ActionForceCopy:
		applyErr = s.applyForceCopy(ctx, &item)
	case ActionRenameThenCopy:
		applyErr = s.applyRenameThenCopy(ctx, &item)
	default:
		applyErr = errors.Errorf("unknown resolution action for item %q", req.ItemID)
	}
	if applyErr != nil {
		return nil, applyErr
	}

	item.ResolvedAtUnixMs = now.UnixMilli()
	item.HasResolvedAt = true

	s.mu.Lock()
	session, ok = s.sessions[sessionID]
	if ok {
		for i := range session.Items {
			if session.Items[i].ID == req.ItemID {
				session.Items[i] = item
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		return nil, errors.Errorf("conflict session %q was closed mid-resolution", sessionID)
	}

	return &item, nil
}

// preflightStaleness re-reads current source/target metadata and logs a
// warning if either differs from the detection-time snapshot. Per
// spec.md §4.9, the store proceeds regardless: the human has chosen, and
// the log is forensic.
func (s *Store) preflightStaleness(item *Item) {
	if sourceInfo, err := os.Lstat(item.SourcePath); err == nil {
		if sourceInfo.Size() != item.Source.Size || sourceInfo.ModTime().UnixMilli() != item.Source.ModifiedUnixMs {
			s.logger.Warnw("source changed since conflict was detected", logging.Fields{"path": item.RelativePath})
		}
	}
	if targetInfo, err := os.Lstat(item.TargetPath); err == nil {
		if targetInfo.Size() != item.Target.Size || targetInfo.ModTime().UnixMilli() != item.Target.ModifiedUnixMs {
			s.logger.Warnw("target changed since conflict was detected", logging.Fields{"path": item.RelativePath})
		}
	}
}

func (s *Store) applyForceCopy(ctx context.Context, item *Item) error {
	if err := os.MkdirAll(filepath.Dir(item.TargetPath), 0o755); err != nil {
		return errors.Wrap(err, "unable to create target parent directory")
	}
	if _, err := copy.CopyFile(ctx, item.SourcePath, item.TargetPath, s.copyOpts); err != nil {
		return errors.Wrap(err, "unable to force-copy conflict item")
	}
	item.Status = StatusForceCopied
	return nil
}

func (s *Store) applyRenameThenCopy(ctx context.Context, item *Item) error {
	if err := os.MkdirAll(filepath.Dir(item.TargetPath), 0o755); err != nil {
		return errors.Wrap(err, "unable to create target parent directory")
	}
	if _, err := os.Lstat(item.TargetPath); err != nil {
		return errors.Wrap(err, "target no longer exists; cannot safely back it up")
	}

	sourceInfo, err := os.Lstat(item.SourcePath)
	if err != nil {
		return errors.Wrap(err, "unable to stat source for backup timestamp")
	}

	backupPath, err := findVacantBackupPath(item.TargetPath, sourceInfo.ModTime(), time.Now().UnixMilli(), s.nextSequence())
	if err != nil {
		return err
	}

	if err := os.Rename(item.TargetPath, backupPath); err != nil {
		return errors.Wrap(err, "unable to rename target aside for backup")
	}

	if _, err := copy.CopyFile(ctx, item.SourcePath, item.TargetPath, s.copyOpts); err != nil {
		return errors.Wrapf(err, "copy failed after target was preserved at %q", backupPath)
	}

	item.Status = StatusSafeCopied
	item.Note = "Backed up existing target to " + backupPath
	item.HasNote = true
	return nil
}

// Close destroys a session. If pending items remain and forceSkipPending
// is false, it is a no-op reporting HadPending. If forced, remaining
// pending items flip to Skipped with an explanatory note before the
// session is removed.
func (s *Store) Close(sessionID string, forceSkipPending bool) (*CloseResult, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, errors.Errorf("no such conflict session %q", sessionID)
	}

	pending := session.PendingCount()
	if pending > 0 && !forceSkipPending {
		s.mu.Unlock()
		return &CloseResult{Closed: false, HadPending: true}, nil
	}

	skippedNow := 0
	if pending > 0 {
		now := time.Now().UnixMilli()
		for i := range session.Items {
			if session.Items[i].Status == StatusPending {
				session.Items[i].Status = StatusSkipped
				session.Items[i].Note = "Skipped when the conflict session was closed"
				session.Items[i].HasNote = true
				session.Items[i].ResolvedAtUnixMs = now
				session.Items[i].HasResolvedAt = true
				skippedNow++
			}
		}
	}

	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.emitQueueChanged()
	s.events.SessionUpdated(sessionID, 0)

	return &CloseResult{Closed: true, HadPending: pending > 0, SkippedNow: skippedNow}, nil
}
