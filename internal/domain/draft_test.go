package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAdvanceFollowsLifecycle(t *testing.T) {
	d := &ContentDraft{}
	if err := d.Advance(StatusPublishing); err != nil {
		t.Fatalf("draft -> publishing: %v", err)
	}
	if err := d.Advance(StatusPublished); err != nil {
		t.Fatalf("publishing -> published: %v", err)
	}
	if !d.Status.Terminal() {
		t.Fatalf("published should be terminal")
	}
	if err := d.Advance(StatusFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition out of published, got %v", err)
	}
}

func TestAdvanceRejectsSkippingAndGoingBack(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusDraft, StatusPublished},
		{StatusDraft, StatusDraft},
		{StatusPublishing, StatusDraft},
		{StatusFailed, StatusPublishing},
		{StatusPublished, StatusDraft},
	}
	for _, tc := range cases {
		d := &ContentDraft{Status: tc.from}
		if err := d.Advance(tc.to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		if d.Status != tc.from {
			t.Errorf("%s -> %s: status changed to %s", tc.from, tc.to, d.Status)
		}
	}

	d := &ContentDraft{}
	if err := d.Advance(StatusFailed); err != nil {
		t.Fatalf("draft -> failed: %v", err)
	}
}

func TestAssignSlugOnce(t *testing.T) {
	d := &ContentDraft{}
	if err := d.AssignSlug("hello-world"); err != nil {
		t.Fatalf("AssignSlug: %v", err)
	}
	if err := d.AssignSlug("other"); !errors.Is(err, ErrSlugAssigned) {
		t.Fatalf("expected ErrSlugAssigned, got %v", err)
	}
	if d.Slug != "hello-world" {
		t.Fatalf("slug changed to %q", d.Slug)
	}
}

func TestPartition(t *testing.T) {
	d := &ContentDraft{PublishedAt: time.Date(2023, time.May, 31, 23, 0, 0, 0, time.UTC)}
	if got := d.Partition(); got != "2023/05" {
		t.Fatalf("unexpected partition %q", got)
	}
	d.PublishedAt = time.Date(987, time.December, 1, 0, 0, 0, 0, time.UTC)
	if got := d.Partition(); got != "0987/12" {
		t.Fatalf("unexpected padded partition %q", got)
	}
}

func TestImportSummaryCounts(t *testing.T) {
	var s ImportSummary
	boom := errors.New("boom")
	s.Add(ItemResult{Index: 0, Status: StatusPublished})
	s.Add(ItemResult{Index: 1, Status: StatusFailed, Err: boom})
	s.Add(ItemResult{Index: 2, Status: StatusPublished})

	if s.Succeeded != 2 || s.Failed != 1 || len(s.Items) != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if errs := s.Errors(); len(errs) != 1 || errs[0] != boom {
		t.Fatalf("unexpected errors %v", errs)
	}
}
