package models

import (
	"testing"
	"time"
)

func TestSnapshotPathsSorted(t *testing.T) {
	s := Snapshot{}
	s.Add(Entry{RelativePath: "b", Kind: KindFile})
	s.Add(Entry{RelativePath: "a/x.py", Kind: KindFile})
	s.Add(Entry{RelativePath: "a", Kind: KindDir})

	got := s.Paths()
	want := []string{"a", "a/x.py", "b"}
	if len(got) != len(want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Paths()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	files, dirs := s.Counts()
	if files != 2 || dirs != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", files, dirs)
	}
}

func TestSnapshotAddReplaces(t *testing.T) {
	s := Snapshot{}
	s.Add(Entry{RelativePath: "f", Kind: KindFile, Size: 1})
	s.Add(Entry{RelativePath: "f", Kind: KindFile, Size: 2, ModTime: time.Unix(10, 0)})

	if len(s) != 1 {
		t.Fatalf("len = %d, want 1", len(s))
	}
	if s["f"].Size != 2 {
		t.Errorf("Size = %d, want 2", s["f"].Size)
	}
}

func TestPlanTotalBytes(t *testing.T) {
	p := &Plan{Actions: []Action{
		{Kind: ActionMkdir, RelativePath: "a"},
		{Kind: ActionUpload, RelativePath: "a/x", Size: 10},
		{Kind: ActionUpdate, RelativePath: "y", Size: 5},
		{Kind: ActionRemoveFile, RelativePath: "z", Size: 100},
	}}

	if got := p.TotalBytes(); got != 15 {
		t.Errorf("TotalBytes() = %d, want 15", got)
	}
	if p.Empty() {
		t.Error("Empty() should be false")
	}
}

func TestStatisticsRecord(t *testing.T) {
	var s Statistics
	s.Record(Action{Kind: ActionMkdir})
	s.Record(Action{Kind: ActionUpload, Size: 3})
	s.Record(Action{Kind: ActionUpdate, Size: 4})
	s.Record(Action{Kind: ActionRemoveFile})
	s.Record(Action{Kind: ActionRemoveDir})

	if s.DirsCreated != 1 || s.FilesUploaded != 1 || s.FilesUpdated != 1 ||
		s.FilesRemoved != 1 || s.DirsRemoved != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
	if s.BytesTransferred != 7 {
		t.Errorf("BytesTransferred = %d, want 7", s.BytesTransferred)
	}
}

func TestStatusExitCode(t *testing.T) {
	tests := []struct {
		status Status
		want   int
	}{
		{StatusSuccess, 0},
		{StatusPartial, 1},
		{StatusFailed, 2},
		{StatusCancelled, 3},
		{Status("bogus"), 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
