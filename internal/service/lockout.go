package service

import (
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 30 * time.Minute
)

type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// LockoutState is the slice of a user record the policy reads and writes.
type LockoutState struct {
	FailedAttempts int
	LockoutUntil   *time.Time
}

func LockoutStateOf(u *domain.User) LockoutState {
	return LockoutState{FailedAttempts: u.FailedAttempts, LockoutUntil: u.LockoutUntil}
}

// Locked reports whether the state is LockedOut at now.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockoutUntil != nil && s.LockoutUntil.After(now)
}

func (s LockoutState) apply(u *domain.User) {
	u.FailedAttempts = s.FailedAttempts
	u.LockoutUntil = s.LockoutUntil
}

func (s LockoutState) columns() map[string]any {
	var until any
	if s.LockoutUntil != nil {
		until = *s.LockoutUntil
	}
	return map[string]any{"failed_attempts": s.FailedAttempts, "lockout_until": until}
}

type LoginEvent int

const (
	// LoginAttempted is evaluated before any credential check.
	LoginAttempted LoginEvent = iota
	LoginFailed
	LoginSucceeded
)

// Evaluate is the single transition function of the lockout state machine.
//
//	Attempted while LockoutUntil > now  -> unchanged, AccountLockedError
//	Attempted otherwise                 -> unchanged, nil
//	Failed, attempts+1 <  threshold     -> attempts+1, ErrInvalidCredentials
//	Failed, attempts+1 >= threshold     -> attempts+1, LockoutUntil=now+Duration, AccountLockedError
//	Succeeded                           -> attempts=0, LockoutUntil=nil, nil
//
// An elapsed window is not reset here: only a success unlocks.
func (p LockoutPolicy) Evaluate(state LockoutState, event LoginEvent, now time.Time) (LockoutState, error) {
	switch event {
	case LoginAttempted:
		if state.Locked(now) {
			return state, lockedError(*state.LockoutUntil, now)
		}
		return state, nil
	case LoginFailed:
		next := LockoutState{FailedAttempts: state.FailedAttempts + 1, LockoutUntil: state.LockoutUntil}
		if next.FailedAttempts >= p.threshold() {
			until := now.Add(p.duration())
			next.LockoutUntil = &until
			return next, lockedError(until, now)
		}
		return next, ErrInvalidCredentials
	default:
		return LockoutState{}, nil
	}
}

func (p LockoutPolicy) threshold() int {
	if p.Threshold < 1 {
		return DefaultLockoutThreshold
	}
	return p.Threshold
}

func (p LockoutPolicy) duration() time.Duration {
	if p.Duration <= 0 {
		return DefaultLockoutDuration
	}
	return p.Duration
}

func lockedError(until, now time.Time) *AccountLockedError {
	return &AccountLockedError{Until: until, Remaining: until.Sub(now)}
}
