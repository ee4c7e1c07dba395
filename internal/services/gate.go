package services

import "blocklab-backend/internal/models"

// IsInvalidParticipant is the single predicate gating every telemetry and
// session-transition call. It is pure: callers load the session and
// experiment first. requireRunning must be true for in-session telemetry and
// stop/restart, false for start.
//
// The secret is compared by exact equality and must never appear in logs or
// error messages.
func IsInvalidParticipant(sess *models.Session, exp *models.Experiment, secret string, requireRunning bool) bool {
	if sess == nil {
		return true
	}
	if sess.Secret != secret {
		return true
	}
	if exp == nil || !exp.Active {
		return true
	}
	if requireRunning && sess.State() != models.SessionRunning {
		return true
	}
	return false
}
