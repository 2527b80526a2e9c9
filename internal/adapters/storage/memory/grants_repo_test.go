package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"medical-record-access/internal/domain/grants"
)

func approvedAt(id string, updated time.Time, expires time.Time) grants.Grant {
	return grants.Grant{
		ID:          id,
		RequesterID: "requester-1",
		SubjectID:   "subject-1",
		Status:      grants.StatusApproved,
		ExpiresAt:   &expires,
		UpdatedAt:   updated,
		Version:     1,
	}
}

func TestGrantRepo_UpdateVersionCheck(t *testing.T) {
	repo := NewGrantsRepo()
	ctx := context.Background()

	g := grants.Grant{ID: "g1", RequesterID: "r", SubjectID: "s", Status: grants.StatusPending, Version: 1}
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// primera transición gana y sube la versión
	g.Status = grants.StatusApproved
	if err := repo.Update(ctx, g); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// la segunda llega con la versión vieja y pierde
	stale := g
	stale.Status = grants.StatusDenied
	if err := repo.Update(ctx, stale); !errors.Is(err, grants.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}

	stored, err := repo.GetByID(ctx, "g1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != grants.StatusApproved || stored.Version != 2 {
		t.Fatalf("expected approved v2, got %+v", stored)
	}
}

func TestGrantRepo_GetActiveGrant(t *testing.T) {
	repo := NewGrantsRepo()
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	expired := approvedAt("g-old", now.Add(-48*time.Hour), now.Add(-time.Hour))
	current := approvedAt("g-new", now.Add(-time.Hour), now.Add(24*time.Hour))
	for _, g := range []grants.Grant{expired, current} {
		if err := repo.Create(ctx, g); err != nil {
			t.Fatalf("Create %s: %v", g.ID, err)
		}
	}

	got, err := repo.GetActiveGrant(ctx, "requester-1", "subject-1", now)
	if err != nil {
		t.Fatalf("GetActiveGrant: %v", err)
	}
	if got.ID != "g-new" {
		t.Fatalf("expected the live grant, got %s", got.ID)
	}

	// now == expires_at ya no está activo
	if _, err := repo.GetActiveGrant(ctx, "requester-1", "subject-1", *current.ExpiresAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry instant, got %v", err)
	}

	if _, err := repo.GetActiveGrant(ctx, "requester-2", "subject-1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign pair, got %v", err)
	}
}
