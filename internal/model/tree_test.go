package model

import (
	"errors"
	"testing"
)

func sampleBoard() *Board {
	return &Board{
		ID:         7,
		Author:     1,
		SharedWith: []int64{1, 2},
		Header:     BoardHeader{Title: "roadmap", HeaderTextColor: "#000000", HeaderBackgroundColor: "#ffffff"},
		Cards: []Card{
			{
				ID: 1, Author: 1, Title: "backlog",
				Tasks: []Task{
					{
						ID: 1, Author: 1, Title: "write docs",
						Tags: []Tag{{ID: 1, Title: "docs", TextColor: "#111111", BackgroundColor: "#222222"}},
						Subtasks: []Subtask{
							{ID: 1, Author: 1, Title: "outline"},
							{ID: 2, Author: 2, Title: "draft"},
						},
					},
					{ID: 2, Author: 2, Title: "ship it"},
				},
			},
			{ID: 2, Author: 2, Title: "done"},
		},
	}
}

func TestResolveEachLevel(t *testing.T) {
	b := sampleBoard()

	card, err := b.Card(2)
	if err != nil || card.Title != "done" {
		t.Fatalf("Card(2) = %v, %v", card, err)
	}
	task, err := b.Task(1, 2)
	if err != nil || task.Title != "ship it" {
		t.Fatalf("Task(1,2) = %v, %v", task, err)
	}
	st, err := b.Subtask(1, 1, 2)
	if err != nil || st.Title != "draft" {
		t.Fatalf("Subtask(1,1,2) = %v, %v", st, err)
	}
}

func TestResolveDistinguishesLevels(t *testing.T) {
	b := sampleBoard()

	if _, err := b.Card(99); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("missing card: got %v", err)
	}
	if _, err := b.Task(99, 1); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("missing card in task address: got %v", err)
	}
	if _, err := b.Task(1, 99); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing task: got %v", err)
	}
	if _, err := b.Subtask(1, 99, 1); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing task in subtask address: got %v", err)
	}
	if _, err := b.Subtask(1, 1, 99); !errors.Is(err, ErrSubtaskNotFound) {
		t.Errorf("missing subtask: got %v", err)
	}
}

func TestResolvedReferencesMutateInPlace(t *testing.T) {
	b := sampleBoard()

	task, err := b.Task(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	task.Exec = true
	if !b.Cards[0].Tasks[0].Exec {
		t.Fatal("mutation through resolved reference did not reach the tree")
	}
}

func TestRemoveAtEachLevel(t *testing.T) {
	b := sampleBoard()

	st, err := b.RemoveSubtask(1, 1, 1)
	if err != nil || st.Title != "outline" {
		t.Fatalf("RemoveSubtask = %v, %v", st, err)
	}
	if len(b.Cards[0].Tasks[0].Subtasks) != 1 || b.Cards[0].Tasks[0].Subtasks[0].ID != 2 {
		t.Fatalf("subtask list after removal: %+v", b.Cards[0].Tasks[0].Subtasks)
	}

	task, err := b.RemoveTask(1, 2)
	if err != nil || task.Title != "ship it" {
		t.Fatalf("RemoveTask = %v, %v", task, err)
	}

	card, err := b.RemoveCard(1)
	if err != nil || card.Title != "backlog" {
		t.Fatalf("RemoveCard = %v, %v", card, err)
	}
	if _, err := b.Card(1); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("removed card still resolvable: %v", err)
	}

	if _, err := b.RemoveCard(99); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("RemoveCard(99) = %v, want ErrCardNotFound", err)
	}
}

func TestTagLookupAndRemoval(t *testing.T) {
	b := sampleBoard()

	task, _ := b.Task(1, 1)
	tag, err := task.Tag(1)
	if err != nil || tag.Title != "docs" {
		t.Fatalf("Tag(1) = %v, %v", tag, err)
	}
	if _, err := task.Tag(5); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("missing tag: got %v", err)
	}

	removed, err := task.RemoveTag(1)
	if err != nil || removed.ID != 1 {
		t.Fatalf("RemoveTag = %v, %v", removed, err)
	}
	if len(task.Tags) != 0 {
		t.Fatalf("tags after removal: %+v", task.Tags)
	}
}

func TestIntersectKeepOrder(t *testing.T) {
	got := IntersectKeepOrder([]int64{5, 1, 3, 2}, []int64{1, 2, 9})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("IntersectKeepOrder = %v, want [1 2]", got)
	}
	if got := IntersectKeepOrder(nil, []int64{1}); len(got) != 0 {
		t.Fatalf("nil ids: %v", got)
	}
}

func TestIsMember(t *testing.T) {
	b := sampleBoard()
	if !b.IsMember(2) {
		t.Error("user 2 should be a member")
	}
	if b.IsMember(3) {
		t.Error("user 3 should not be a member")
	}
}
