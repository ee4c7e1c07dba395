package services

import (
	"context"
	"log"
	"time"

	"blocklab-backend/internal/models"
)

// SessionService owns the NOT_STARTED -> RUNNING -> FINISHED lifecycle of a
// participant's run. Every transition checks all preconditions before the
// single UPDATE that applies it, so a rejected call never mutates state.
type SessionService struct {
	sessions     SessionStore
	experiments  ExperimentStore
	participants ParticipantStore
	notifier     Notifier
	locks        *UserLocks

	// restartResetsStart controls whether Restart also resets started_at or
	// only clears ended_at (the default: the original start is preserved).
	restartResetsStart bool

	now func() time.Time
}

func NewSessionService(
	sessions SessionStore,
	experiments ExperimentStore,
	participants ParticipantStore,
	notifier Notifier,
	locks *UserLocks,
	restartResetsStart bool,
) *SessionService {
	return &SessionService{
		sessions:           sessions,
		experiments:        experiments,
		participants:       participants,
		notifier:           notifier,
		locks:              locks,
		restartResetsStart: restartResetsStart,
		now:                time.Now,
	}
}

// load fetches the session and experiment; a missing session or experiment is
// reported as NotFound before any gate check runs.
func (s *SessionService) load(ctx context.Context, userID, experimentID int64) (*models.Session, *models.Experiment, error) {
	sess, err := s.sessions.Get(ctx, experimentID, userID)
	if err != nil {
		return nil, nil, err
	}
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil || exp == nil {
		return nil, nil, &NotFoundError{Message: "session not found"}
	}
	return sess, exp, nil
}

// Start transitions the session to RUNNING. It fails with Conflict if the
// user has a RUNNING session in any other experiment.
func (s *SessionService) Start(ctx context.Context, userID, experimentID int64, secret string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, exp, err := s.load(ctx, userID, experimentID)
	if err != nil {
		return err
	}
	if IsInvalidParticipant(sess, exp, secret, false) {
		return &InvalidParticipantError{}
	}

	running, err := s.sessions.RunningElsewhere(ctx, userID, experimentID)
	if err != nil {
		return err
	}
	if running {
		return &ConflictError{Message: "simultaneous participation"}
	}

	if err := s.sessions.MarkStarted(ctx, experimentID, userID, s.now()); err != nil {
		return err
	}
	if err := s.participants.SetActive(ctx, userID, true); err != nil {
		log.Printf("session start: activate participant %d failed: %v", userID, err)
	}
	return nil
}

// Stop transitions a RUNNING session to FINISHED and deactivates the
// participant account. The simultaneous-participation check is re-run as a
// safety re-validation before the write.
func (s *SessionService) Stop(ctx context.Context, userID, experimentID int64, secret string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, exp, err := s.load(ctx, userID, experimentID)
	if err != nil {
		return err
	}
	if IsInvalidParticipant(sess, exp, secret, true) {
		return &InvalidParticipantError{}
	}

	running, err := s.sessions.RunningElsewhere(ctx, userID, experimentID)
	if err != nil {
		return err
	}
	if running {
		return &ConflictError{Message: "simultaneous participation"}
	}

	if err := s.sessions.MarkFinished(ctx, experimentID, userID, s.now()); err != nil {
		return err
	}
	if err := s.participants.SetActive(ctx, userID, false); err != nil {
		log.Printf("session stop: deactivate participant %d failed: %v", userID, err)
	}
	if s.notifier != nil {
		if err := s.notifier.ParticipantFinished(ctx, userID, experimentID); err != nil {
			log.Printf("session stop: notify failed for user %d experiment %d: %v", userID, experimentID, err)
		}
	}
	return nil
}

// Restart reopens a FINISHED session: ended_at is cleared and the same run
// continues as RUNNING. No new session record is created.
func (s *SessionService) Restart(ctx context.Context, userID, experimentID int64, secret string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, exp, err := s.load(ctx, userID, experimentID)
	if err != nil {
		return err
	}
	if IsInvalidParticipant(sess, exp, secret, false) {
		return &InvalidParticipantError{}
	}
	if sess.State() != models.SessionFinished {
		return &InvalidParticipantError{}
	}

	var start *time.Time
	if s.restartResetsStart {
		now := s.now()
		start = &now
	}
	if err := s.sessions.Reopen(ctx, experimentID, userID, start); err != nil {
		return err
	}
	if err := s.participants.SetActive(ctx, userID, true); err != nil {
		log.Printf("session restart: activate participant %d failed: %v", userID, err)
	}
	return nil
}
