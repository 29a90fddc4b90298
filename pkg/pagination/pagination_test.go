package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit {
		t.Fatalf("expected default limit")
	}
	if NormalizeLimit(MaxLimit+1) != MaxLimit {
		t.Fatalf("expected max limit")
	}
	if NormalizeLimit(7) != 7 {
		t.Fatalf("expected passthrough")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor mismatch %+v vs %+v", out, in)
	}
	if c, err := ParseCursor(""); c != nil || err != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", c, err)
	}
	if _, err := ParseCursor("not-base64!"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestTrim(t *testing.T) {
	ids := []int{1, 2, 3, 4}
	cursorOf := func(v int) Cursor { return Cursor{CreatedAt: time.Unix(int64(v), 0)} }

	rows, next := Trim(ids, 3, cursorOf)
	if len(rows) != 3 || next == nil || next.CreatedAt.Unix() != 3 {
		t.Fatalf("unexpected trim result %v %v", rows, next)
	}
	rows, next = Trim(ids[:2], 3, cursorOf)
	if len(rows) != 2 || next != nil {
		t.Fatalf("last page should have no cursor, got %v %v", rows, next)
	}
	if EncodeNext(nil) != "" {
		t.Fatalf("expected empty next cursor")
	}
}
