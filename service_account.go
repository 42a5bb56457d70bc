package adminAuth

import (
	"context"
	"errors"
	"fmt"
)

// UpdateRoleAs changes target's role on behalf of actor.
//
// actor must hold RoleAdmin, both in the given value and in the backend's current
// record, and may not change their own role. Administrators' roles are not
// editable at all. Otherwise ErrPermissionDenied is returned and nothing is
// written. When target is the signed-in user, the session is re-persisted before
// the new state is published.
func (s *Service) UpdateRoleAs(ctx context.Context, actor SessionUser, targetID string, role Role) (UserRecord, error) {
	if _, err := s.begin(false); err != nil {
		return UserRecord{}, err
	}

	deny := func(reason string) (UserRecord, error) {
		s.metricInc(MetricRoleChangeDenied)
		s.emitAudit(ctx, auditEventRoleChangeDenied, false, actor.ID, targetID, "", ErrPermissionDenied, func() map[string]string {
			return map[string]string{"reason": reason, "role": role.String()}
		})
		return UserRecord{}, ErrPermissionDenied
	}

	if actor.Role != RoleAdmin {
		return deny("actor_not_admin")
	}
	if actor.ID == targetID {
		return deny("self_change")
	}
	if !role.Valid() {
		return UserRecord{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	ok, err := s.confirmAdmin(ctx, actor)
	if err != nil {
		return UserRecord{}, err
	}
	if !ok {
		return deny("actor_revoked")
	}

	target, err := s.creds.FindByID(ctx, targetID)
	if err == nil && target == nil {
		err = ErrNotFound
	}
	if err != nil {
		s.backendFailed(err)
		s.emitAudit(ctx, auditEventRoleChange, false, actor.ID, targetID, "", err, nil)
		return UserRecord{}, err
	}
	if target.Role == RoleAdmin {
		return deny("target_admin")
	}

	updated, err := s.creds.UpdateRole(ctx, targetID, role)
	if err != nil {
		s.backendFailed(err)
		s.emitAudit(ctx, auditEventRoleChange, false, actor.ID, targetID, "", err, nil)
		return UserRecord{}, err
	}

	s.metricInc(MetricRoleChangeSuccess)
	s.emitAudit(ctx, auditEventRoleChange, true, actor.ID, updated.ID, updated.Email, nil, func() map[string]string {
		return map[string]string{"role": updated.Role.String()}
	})
	s.logger.Info().Str("actor_id", actor.ID).Str("user_id", updated.ID).Str("role", updated.Role.String()).Msg("role changed")

	if err := s.refreshIfCurrent(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// UpdateRole changes target's role on behalf of the signed-in user.
func (s *Service) UpdateRole(ctx context.Context, targetID string, role Role) (UserRecord, error) {
	actor, err := s.actor()
	if err != nil {
		return UserRecord{}, err
	}
	return s.UpdateRoleAs(ctx, actor, targetID, role)
}

// UpdateProfileFor changes an account's name and email. The signed-in user may
// update their own profile; administrators, confirmed against the backend, may
// update any profile.
func (s *Service) UpdateProfileFor(ctx context.Context, userID, name, email string) (UserRecord, error) {
	actor, err := s.actor()
	if err != nil {
		return UserRecord{}, err
	}
	if actor.ID != userID {
		ok, err := s.confirmAdmin(ctx, actor)
		if err != nil {
			return UserRecord{}, err
		}
		if !ok {
			s.emitAudit(ctx, auditEventProfileUpdate, false, actor.ID, userID, "", ErrPermissionDenied, nil)
			return UserRecord{}, ErrPermissionDenied
		}
	}

	updated, err := s.creds.UpdateProfile(ctx, userID, name, email)
	if err != nil {
		s.backendFailed(err)
		s.emitAudit(ctx, auditEventProfileUpdate, false, actor.ID, userID, email, err, nil)
		return UserRecord{}, err
	}

	s.metricInc(MetricProfileUpdate)
	s.emitAudit(ctx, auditEventProfileUpdate, true, actor.ID, updated.ID, updated.Email, nil, nil)
	if err := s.refreshIfCurrent(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// UpdateProfile changes the signed-in user's own name and email.
func (s *Service) UpdateProfile(ctx context.Context, name, email string) (UserRecord, error) {
	actor, err := s.actor()
	if err != nil {
		return UserRecord{}, err
	}
	return s.UpdateProfileFor(ctx, actor.ID, name, email)
}

// ChangeSecretFor replaces userID's secret after checking oldSecret. Only the
// account's owner may change it.
func (s *Service) ChangeSecretFor(ctx context.Context, userID, oldSecret, newSecret string) error {
	actor, err := s.actor()
	if err != nil {
		return err
	}
	if actor.ID != userID {
		s.emitAudit(ctx, auditEventPasswordChangeFailure, false, actor.ID, userID, "", ErrPermissionDenied, nil)
		return ErrPermissionDenied
	}

	if err := s.creds.ChangeSecret(ctx, userID, oldSecret, newSecret); err != nil {
		s.backendFailed(err)
		if errors.Is(err, ErrInvalidCredential) {
			s.metricInc(MetricPasswordChangeInvalidOld)
			s.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, actor.ID, userID, "", err, nil)
		} else {
			s.emitAudit(ctx, auditEventPasswordChangeFailure, false, actor.ID, userID, "", err, nil)
		}
		return err
	}

	s.metricInc(MetricPasswordChangeSuccess)
	s.emitAudit(ctx, auditEventPasswordChangeSuccess, true, actor.ID, userID, "", nil, nil)

	// The session carries no secret; resync it with the stored record anyway.
	rec, err := s.creds.FindByID(ctx, userID)
	if err != nil || rec == nil {
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("session refresh after secret change skipped")
		}
		return nil
	}
	return s.refreshIfCurrent(ctx, *rec)
}

// ChangePassword changes the signed-in user's own secret.
func (s *Service) ChangePassword(ctx context.Context, oldSecret, newSecret string) error {
	actor, err := s.actor()
	if err != nil {
		return err
	}
	return s.ChangeSecretFor(ctx, actor.ID, oldSecret, newSecret)
}

// ListUsers returns every account. It requires a signed-in administrator whose
// role the backend still confirms.
func (s *Service) ListUsers(ctx context.Context) ([]UserRecord, error) {
	actor, err := s.actor()
	if err != nil {
		return nil, err
	}
	ok, err := s.confirmAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	users, err := s.creds.List(ctx)
	if err != nil {
		s.backendFailed(err)
		return nil, err
	}
	return users, nil
}

// confirmAdmin reports whether actor is an administrator both in the session and
// in the backend's current record.
func (s *Service) confirmAdmin(ctx context.Context, actor SessionUser) (bool, error) {
	if actor.Role != RoleAdmin {
		return false, nil
	}
	fresh, err := s.creds.FindByID(ctx, actor.ID)
	if err != nil {
		s.backendFailed(err)
		return false, err
	}
	return fresh != nil && fresh.Role == RoleAdmin, nil
}

// actor returns the signed-in user of a started Service.
func (s *Service) actor() (SessionUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return SessionUser{}, ErrServiceClosed
	}
	if !s.started {
		return SessionUser{}, ErrNotStarted
	}
	if s.current == nil {
		return SessionUser{}, ErrNotAuthenticated
	}
	return *s.current, nil
}

// refreshIfCurrent re-persists rec as the session when it is the signed-in account
// and publishes the new state. The record mutation has already succeeded, so a
// failed write is returned without rolling it back; the in-memory session is left
// as it was.
func (s *Service) refreshIfCurrent(ctx context.Context, rec UserRecord) error {
	s.mu.Lock()
	if s.current == nil || s.current.ID != rec.ID {
		s.mu.Unlock()
		return nil
	}

	next := rec.SessionUser()
	if *s.current == next {
		s.mu.Unlock()
		return nil
	}
	if err := s.sessions.Persist(ctx, next); err != nil {
		s.mu.Unlock()
		s.backendFailed(err)
		s.logger.Warn().Err(err).Str("user_id", rec.ID).Msg("session refresh failed")
		return fmt.Errorf("refresh session: %w", err)
	}
	s.current = &next
	s.publishLocked()
	return nil
}
