package patch

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"taskboard/internal/color"
	"taskboard/internal/model"
)

func raw(t *testing.T, s string) Patch {
	t.Helper()
	var p Patch
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		t.Fatalf("bad test payload %s: %v", s, err)
	}
	return p
}

func TestApplyBoard(t *testing.T) {
	b := &model.Board{Header: model.BoardHeader{Title: "old"}}

	changed, err := ApplyBoard(b, raw(t, `{"title":"new","header_text_color":"#0a0b0c","background":{"color":"#101112"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected change")
	}
	if b.Header.Title != "new" || b.Header.HeaderTextColor != "#0a0b0c" || b.Background.Color != "#101112" {
		t.Fatalf("board after patch: %+v", b)
	}
}

func TestApplyBoardURLBackground(t *testing.T) {
	b := &model.Board{}
	if _, err := ApplyBoard(b, raw(t, `{"background":{"url":"https://img.example/bg.png"}}`)); err != nil {
		t.Fatal(err)
	}
	if b.Background.URL != "https://img.example/bg.png" {
		t.Fatalf("background: %+v", b.Background)
	}
}

func TestApplyBoardRejectsEmptyTitle(t *testing.T) {
	b := &model.Board{Header: model.BoardHeader{Title: "keep"}}
	if _, err := ApplyBoard(b, raw(t, `{"title":""}`)); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("got %v, want ErrEmptyTitle", err)
	}
	if b.Header.Title != "keep" {
		t.Fatal("title mutated on rejected patch")
	}
}

func TestPatchAtomicity(t *testing.T) {
	// One valid field plus one invalid: neither may apply.
	c := &model.Card{Title: "before", BackgroundColor: "#ffffff"}
	before := *c

	_, err := ApplyCard(c, raw(t, `{"title":"after","background_color":"nope"}`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !reflect.DeepEqual(*c, before) {
		t.Fatalf("card mutated on failed patch: %+v", c)
	}
}

func TestUnrecognizedFieldsIgnored(t *testing.T) {
	c := &model.Card{Title: "t"}
	changed, err := ApplyCard(c, raw(t, `{"bogus":123,"another":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("patch with no recognized fields must be a no-op")
	}
}

func TestEmptyPatchIsNoop(t *testing.T) {
	b := &model.Board{}
	changed, err := ApplyBoard(b, Patch{})
	if err != nil || changed {
		t.Fatalf("empty patch: changed=%v err=%v", changed, err)
	}
}

func TestApplyTask(t *testing.T) {
	task := &model.Task{Title: "t", Executors: []int64{9}}
	p := raw(t, `{"executors":[5,1,3,2],"exec":true,"notes":"n"}`)

	changed, err := ApplyTask(task, p, []int64{1, 2})
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if !reflect.DeepEqual(task.Executors, []int64{1, 2}) {
		t.Errorf("executors = %v, want [1 2]", task.Executors)
	}
	if !task.Exec || task.Notes != "n" {
		t.Errorf("task after patch: %+v", task)
	}
}

func TestApplyTaskWrongTypes(t *testing.T) {
	task := &model.Task{}
	for _, payload := range []string{
		`{"exec":"yes"}`,
		`{"executors":"all"}`,
		`{"title":7}`,
		`{"notes":[1]}`,
	} {
		if _, err := ApplyTask(task, raw(t, payload), nil); !errors.Is(err, ErrWrongType) {
			t.Errorf("payload %s: got %v, want ErrWrongType", payload, err)
		}
	}
}

func TestApplySubtask(t *testing.T) {
	st := &model.Subtask{}
	changed, err := ApplySubtask(st, raw(t, `{"title":"s","exec":true}`), nil)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if st.Title != "s" || !st.Exec {
		t.Fatalf("subtask after patch: %+v", st)
	}
}

func TestApplyTagColorValidation(t *testing.T) {
	tag := &model.Tag{TextColor: "#000000"}
	_, err := ApplyTag(tag, raw(t, `{"text_color":"#1a2b3"}`))
	if !errors.Is(err, color.ErrLength) {
		t.Fatalf("got %v, want color length error", err)
	}
	if tag.TextColor != "#000000" {
		t.Fatal("tag mutated on rejected patch")
	}
}
