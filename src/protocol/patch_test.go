package protocol

import (
	"errors"
	"testing"
)

func snapshotFixtures() []PlayerState {
	trackA := Track{URI: "track://a", Title: "A", DurationMillis: 180_000}
	trackB := Track{URI: "track://b", Title: "B", DurationMillis: 200_000, PositionMillis: 31_000}
	trackC := Track{URI: "track://c", Title: "C", DurationMillis: 95_000}
	owner := OwnerInfo{ID: "1", Name: "bot"}

	return []PlayerState{
		{Owner: owner},
		{Owner: owner, Paused: true},
		{Owner: owner, Mode: PlayModeLoopAll, Current: &trackA},
		{Owner: owner, Current: &trackB, Queue: []Track{trackA, trackC}},
		{Owner: owner, Current: &trackB, History: []Track{trackA}, Queue: []Track{trackC}},
		{Owner: OwnerInfo{ID: "2", Name: "other"}, Mode: PlayModeLoopOne, Current: &trackC,
			History: []Track{trackA, trackB}, Queue: []Track{trackA}},
	}
}

func TestPatchRoundTripLaw(t *testing.T) {
	states := snapshotFixtures()
	for i, a := range states {
		for j, b := range states {
			patch, err := DiffState(&a, &b)
			if err != nil {
				t.Fatalf("diff %d -> %d: %v", i, j, err)
			}
			if got := patch.Apply(a); !got.Equal(b) {
				t.Fatalf("apply(diff(%d, %d)) != %d:\n got %+v\nwant %+v", i, j, j, got, b)
			}
		}
	}
}

func TestPatchOfIdenticalStatesIsEmpty(t *testing.T) {
	state := snapshotFixtures()[3]
	patch, err := DiffState(&state, &state)
	if err != nil {
		t.Fatal(err)
	}
	if !patch.IsEmpty() {
		t.Fatalf("expected an empty patch, got %+v", patch)
	}
}

func TestPatchClearsCurrent(t *testing.T) {
	withCurrent := snapshotFixtures()[2]
	withoutCurrent := snapshotFixtures()[0]
	patch, err := DiffState(&withCurrent, &withoutCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Current == nil || patch.Current.Track != nil {
		t.Fatalf("expected an explicit current clear, got %+v", patch.Current)
	}
	if got := patch.Apply(withCurrent); got.Current != nil {
		t.Fatalf("current should be cleared, got %+v", got.Current)
	}
}

func TestDiffNilBase(t *testing.T) {
	state := snapshotFixtures()[0]
	if _, err := DiffState(nil, &state); !errors.Is(err, ErrNotDiffable) {
		t.Fatalf("expected ErrNotDiffable, got %v", err)
	}
}

func TestPatchDoesNotAliasBase(t *testing.T) {
	a := snapshotFixtures()[3]
	b := snapshotFixtures()[4]
	patch, err := DiffState(&a, &b)
	if err != nil {
		t.Fatal(err)
	}
	got := patch.Apply(a)
	got.Queue[0].Title = "mutated"
	if b.Queue[0].Title == "mutated" {
		t.Fatal("applied state shares memory with the diff input")
	}
}
