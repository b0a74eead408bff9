// Package patch applies sparse field updates to one addressed node of
// a board document. A patch either applies every recognized, well-typed
// field or none of them; unrecognized fields are ignored so older
// servers tolerate newer clients.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"

	"taskboard/internal/color"
	"taskboard/internal/model"
)

// Patch is the raw sparse payload, field name to undecoded JSON value.
type Patch map[string]json.RawMessage

var (
	ErrWrongType  = errors.New("field has wrong type")
	ErrEmptyTitle = errors.New("title must not be empty")
	ErrBackground = errors.New("background must be a color or an external image reference")
)

// Every Apply function stages decoded values first and only assigns
// once the whole patch validated, so a bad field never half-applies.

// ApplyBoard patches board-level header and background fields. The
// returned flag reports whether anything was recognized and applied.
func ApplyBoard(b *model.Board, p Patch) (bool, error) {
	var stage []func()

	if raw, ok := p["title"]; ok {
		title, err := decodeString("title", raw)
		if err != nil {
			return false, err
		}
		if title == "" {
			return false, ErrEmptyTitle
		}
		stage = append(stage, func() { b.Header.Title = title })
	}
	if raw, ok := p["background"]; ok {
		var bg model.Background
		if err := json.Unmarshal(raw, &bg); err != nil {
			return false, fmt.Errorf("background: %w", ErrWrongType)
		}
		if bg.Color == "" && bg.URL == "" {
			return false, ErrBackground
		}
		if bg.IsColor() {
			if err := color.Validate(bg.Color); err != nil {
				return false, fmt.Errorf("background: %w", err)
			}
		}
		stage = append(stage, func() { b.Background = bg })
	}
	if apply, err := stageColor(p, "header_background_color", &b.Header.HeaderBackgroundColor); err != nil {
		return false, err
	} else if apply != nil {
		stage = append(stage, apply)
	}
	if apply, err := stageColor(p, "header_text_color", &b.Header.HeaderTextColor); err != nil {
		return false, err
	} else if apply != nil {
		stage = append(stage, apply)
	}

	return runStage(stage), nil
}

// ApplyCard patches card title and colors.
func ApplyCard(c *model.Card, p Patch) (bool, error) {
	var stage []func()

	if raw, ok := p["title"]; ok {
		title, err := decodeString("title", raw)
		if err != nil {
			return false, err
		}
		stage = append(stage, func() { c.Title = title })
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"background_color", &c.BackgroundColor},
		{"header_text_color", &c.HeaderTextColor},
		{"header_background_color", &c.HeaderBackgroundColor},
	} {
		apply, err := stageColor(p, f.name, f.dst)
		if err != nil {
			return false, err
		}
		if apply != nil {
			stage = append(stage, apply)
		}
	}

	return runStage(stage), nil
}

// ApplyTask patches title, executors, completion flag and notes.
// Executors are filtered against the board's current membership; ids
// that are not members are dropped, never rejected.
func ApplyTask(t *model.Task, p Patch, sharedWith []int64) (bool, error) {
	stage, err := stageAssignable(p, &t.Title, &t.Executors, &t.Exec, sharedWith)
	if err != nil {
		return false, err
	}
	if raw, ok := p["notes"]; ok {
		notes, err := decodeString("notes", raw)
		if err != nil {
			return false, err
		}
		stage = append(stage, func() { t.Notes = notes })
	}
	return runStage(stage), nil
}

// ApplySubtask patches title, executors and completion flag.
func ApplySubtask(s *model.Subtask, p Patch, sharedWith []int64) (bool, error) {
	stage, err := stageAssignable(p, &s.Title, &s.Executors, &s.Exec, sharedWith)
	if err != nil {
		return false, err
	}
	return runStage(stage), nil
}

// ApplyTag patches tag title and colors.
func ApplyTag(tag *model.Tag, p Patch) (bool, error) {
	var stage []func()

	if raw, ok := p["title"]; ok {
		title, err := decodeString("title", raw)
		if err != nil {
			return false, err
		}
		stage = append(stage, func() { tag.Title = title })
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"background_color", &tag.BackgroundColor},
		{"text_color", &tag.TextColor},
	} {
		apply, err := stageColor(p, f.name, f.dst)
		if err != nil {
			return false, err
		}
		if apply != nil {
			stage = append(stage, apply)
		}
	}

	return runStage(stage), nil
}

func stageAssignable(p Patch, title *string, executors *[]int64, exec *bool, sharedWith []int64) ([]func(), error) {
	var stage []func()

	if raw, ok := p["title"]; ok {
		decoded, err := decodeString("title", raw)
		if err != nil {
			return nil, err
		}
		stage = append(stage, func() { *title = decoded })
	}
	if raw, ok := p["executors"]; ok {
		var ids []int64
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("executors: %w", ErrWrongType)
		}
		filtered := model.IntersectKeepOrder(ids, sharedWith)
		stage = append(stage, func() { *executors = filtered })
	}
	if raw, ok := p["exec"]; ok {
		var done bool
		if err := json.Unmarshal(raw, &done); err != nil {
			return nil, fmt.Errorf("exec: %w", ErrWrongType)
		}
		stage = append(stage, func() { *exec = done })
	}

	return stage, nil
}

func stageColor(p Patch, field string, dst *string) (func(), error) {
	raw, ok := p[field]
	if !ok {
		return nil, nil
	}
	value, err := decodeString(field, raw)
	if err != nil {
		return nil, err
	}
	if err := color.Validate(value); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return func() { *dst = value }, nil
}

func decodeString(field string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s: %w", field, ErrWrongType)
	}
	return s, nil
}

func runStage(stage []func()) bool {
	for _, apply := range stage {
		apply()
	}
	return len(stage) > 0
}
