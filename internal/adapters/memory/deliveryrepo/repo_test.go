package deliveryrepo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
)

func TestRepo_UpdateIfStatus_OnlyOneConcurrentWinner(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx := context.Background()
	now := time.Unix(100, 0).UTC()
	d := domain.Delivery{ID: "d1", StudentID: "s1", StudentName: "S", Source: "A", Destination: "B", Status: domain.StatusRequested, RequestedAt: now, UpdatedAt: now}
	if err := r.Create(ctx, d, domain.StatusEvent{To: domain.StatusRequested, At: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pid := domain.UserID("p")
			name := "P"
			next := d
			next.Status = domain.StatusAccepted
			next.PersonnelID = &pid
			next.PersonnelName = &name
			next.UpdatedAt = now.Add(time.Duration(i+1) * time.Second)
			err := r.UpdateIfStatus(ctx, next, domain.StatusRequested, domain.StatusEvent{From: domain.StatusRequested, To: domain.StatusAccepted, At: next.UpdatedAt})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, deliveryrepo.ErrStatusConflict):
				conflict++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || conflict != workers-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/%d", wins, conflict, workers-1)
	}
	evs, err := r.ListEvents(ctx, "d1")
	if err != nil || len(evs) != 2 {
		t.Fatalf("events=%v err=%v, want 2 events", evs, err)
	}
}

func TestRepo_UpdateIfStatus_KeepsImmutableFields(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx := context.Background()
	t0 := time.Unix(100, 0).UTC()
	d := domain.Delivery{ID: "d1", StudentID: "s1", StudentName: "S", Status: domain.StatusRequested, RequestedAt: t0, UpdatedAt: t0}
	_ = r.Create(ctx, d, domain.StatusEvent{To: domain.StatusRequested, At: t0})

	next := d
	next.Status = domain.StatusRejected
	next.RequestedAt = t0.Add(time.Hour)
	next.StudentID = "other"
	next.UpdatedAt = t0.Add(time.Minute)
	if err := r.UpdateIfStatus(ctx, next, domain.StatusRequested, domain.StatusEvent{From: domain.StatusRequested, To: domain.StatusRejected}); err != nil {
		t.Fatalf("UpdateIfStatus: %v", err)
	}
	got, _ := r.Get(ctx, "d1")
	if !got.RequestedAt.Equal(t0) || got.StudentID != "s1" {
		t.Fatalf("immutable fields changed: %+v", got)
	}
}
