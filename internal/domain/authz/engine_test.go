package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"medical-record-access/internal/domain/grants"
	"medical-record-access/internal/domain/identity"
)

type fakeGrants struct {
	byPair map[string]grants.Grant // requesterID + "|" + subjectID
}

func (f *fakeGrants) ActiveGrant(ctx context.Context, requesterID, subjectID string, now time.Time) (grants.Grant, error) {
	g, ok := f.byPair[requesterID+"|"+subjectID]
	if !ok || !g.Active(now) {
		return grants.Grant{}, errors.New("not found")
	}
	return g, nil
}

var (
	subject = identity.Actor{ID: "subject-1", Role: identity.RoleSubject}
	cardio  = identity.Actor{ID: "requester-1", Role: identity.RoleRequester, Category: "cardiology"}
	admin   = identity.Actor{ID: "supervisor-1", Role: identity.RoleSupervisor}
)

func engineWith(gs ...grants.Grant) *Engine {
	f := &fakeGrants{byPair: map[string]grants.Grant{}}
	for _, g := range gs {
		f.byPair[g.RequesterID+"|"+g.SubjectID] = g
	}
	return NewEngine(f)
}

func approvedGrant(requesterID, subjectID string, expires time.Time, scopeLimited bool) grants.Grant {
	return grants.Grant{
		ID:           "g-" + requesterID,
		RequesterID:  requesterID,
		SubjectID:    subjectID,
		Status:       grants.StatusApproved,
		ScopeLimited: scopeLimited,
		ExpiresAt:    &expires,
	}
}

func TestDecide_RuleOrder(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	e := engineWith(approvedGrant(cardio.ID, subject.ID, now.Add(24*time.Hour), false))

	cases := []struct {
		name       string
		actor      identity.Actor
		subjectID  string
		category   string
		wantAllow  bool
		wantReason string
	}{
		{"supervisor sees everything", admin, subject.ID, "imaging", true, ReasonSupervisorOverride},
		{"subject sees own records", subject, subject.ID, "imaging", true, ReasonOwner},
		{"requester with active grant", cardio, subject.ID, "imaging", true, ReasonActiveGrant},
		{"requester without grant for other subject", cardio, "subject-2", "", false, ReasonNoActiveGrant},
		{"subject cannot read a stranger", subject, "subject-2", "", false, ReasonRoleNotPermitted},
	}

	for _, tc := range cases {
		d := e.Decide(context.Background(), tc.actor, tc.subjectID, tc.category, now)
		if d.Allow != tc.wantAllow || d.Reason != tc.wantReason {
			t.Fatalf("%s: got allow=%t reason=%q, want allow=%t reason=%q",
				tc.name, d.Allow, d.Reason, tc.wantAllow, tc.wantReason)
		}
	}
}

func TestDecide_ExpiryBoundaryIsStrict(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expiry := t0.AddDate(0, 0, 30)
	e := engineWith(approvedGrant(cardio.ID, subject.ID, expiry, false))

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"day 29", t0.AddDate(0, 0, 29), true},
		{"one second before expiry", expiry.Add(-time.Second), true},
		{"exactly at expiry", expiry, false},
		{"day 31", t0.AddDate(0, 0, 31), false},
	}

	for _, tc := range cases {
		d := e.Decide(context.Background(), cardio, subject.ID, "", tc.now)
		if d.Allow != tc.want {
			t.Fatalf("%s: got allow=%t, want %t (reason=%q)", tc.name, d.Allow, tc.want, d.Reason)
		}
	}
}

func TestDecide_ScopeLimitedFiltersByCategory(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	e := engineWith(approvedGrant(cardio.ID, subject.ID, now.Add(time.Hour), true))

	if d := e.Decide(context.Background(), cardio, subject.ID, "cardiology", now); !d.Allow {
		t.Fatalf("matching category must be allowed, got reason=%q", d.Reason)
	}
	// match insensible a mayúsculas
	if d := e.Decide(context.Background(), cardio, subject.ID, "Cardiology", now); !d.Allow {
		t.Fatalf("category match must be case-insensitive, got reason=%q", d.Reason)
	}
	if d := e.Decide(context.Background(), cardio, subject.ID, "imaging", now); d.Allow || d.Reason != ReasonOutOfScope {
		t.Fatalf("foreign category must be out of scope, got allow=%t reason=%q", d.Allow, d.Reason)
	}
}

func TestDecide_NonApprovedGrantsDeny(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(time.Hour)

	for _, status := range []grants.Status{grants.StatusPending, grants.StatusDenied, grants.StatusRevoked} {
		g := approvedGrant(cardio.ID, subject.ID, expiry, false)
		g.Status = status
		e := engineWith(g)

		d := e.Decide(context.Background(), cardio, subject.ID, "", now)
		if d.Allow || d.Reason != ReasonNoActiveGrant {
			t.Fatalf("status %s: got allow=%t reason=%q", status, d.Allow, d.Reason)
		}
	}
}
