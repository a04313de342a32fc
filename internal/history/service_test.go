package history

import (
	"context"
	"errors"
	"testing"
)

func TestArchive_RequiresSessionExecutorAndResult(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	cases := []Record{
		{ExecutorID: "e1", Result: "accepted"},
		{SessionID: "s1", Result: "accepted"},
		{SessionID: "s1", ExecutorID: "e1"},
	}
	for _, rec := range cases {
		if err := svc.Archive(context.Background(), rec); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("expected ErrInvalidRecord for %+v, got %v", rec, err)
		}
	}
}

func TestArchive_AssignsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.Archive(context.Background(), Record{
		SessionID:  "s1",
		ExecutorID: "e1",
		OrderID:    "ORD-1",
		Result:     "accepted",
		Turns:      2,
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	recs := repo.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if recs[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestListByExecutor_NewestFirstWithLimit(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	for _, result := range []string{"declined", "no_answer", "accepted"} {
		if err := svc.Archive(context.Background(), Record{
			SessionID:  "s-" + result,
			ExecutorID: "e1",
			Result:     result,
		}); err != nil {
			t.Fatalf("archive: %v", err)
		}
	}
	if err := svc.Archive(context.Background(), Record{
		SessionID:  "s-other",
		ExecutorID: "e2",
		Result:     "declined",
	}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	recs, err := svc.ListByExecutor(context.Background(), "e1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Result != "accepted" || recs[1].Result != "no_answer" {
		t.Fatalf("expected newest first, got %s then %s", recs[0].Result, recs[1].Result)
	}
}
