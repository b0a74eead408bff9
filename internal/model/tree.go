package model

import "errors"

// Address resolution errors. Each level fails distinctly so callers can
// tell which segment of an address did not resolve.
var (
	ErrCardNotFound    = errors.New("card not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrSubtaskNotFound = errors.New("subtask not found")
	ErrTagNotFound     = errors.New("tag not found")
)

// Lookup is a linear scan at every level. Boards hold at most a few
// hundred cards and tasks, so positions are cheaper than an index.

func (b *Board) cardIndex(cardID int64) int {
	for i := range b.Cards {
		if b.Cards[i].ID == cardID {
			return i
		}
	}
	return -1
}

func (c *Card) taskIndex(taskID int64) int {
	for i := range c.Tasks {
		if c.Tasks[i].ID == taskID {
			return i
		}
	}
	return -1
}

func (t *Task) subtaskIndex(subtaskID int64) int {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			return i
		}
	}
	return -1
}

// Card resolves a card id to the card in place.
func (b *Board) Card(cardID int64) (*Card, error) {
	i := b.cardIndex(cardID)
	if i < 0 {
		return nil, ErrCardNotFound
	}
	return &b.Cards[i], nil
}

// Task resolves a (card, task) address.
func (b *Board) Task(cardID, taskID int64) (*Task, error) {
	card, err := b.Card(cardID)
	if err != nil {
		return nil, err
	}
	j := card.taskIndex(taskID)
	if j < 0 {
		return nil, ErrTaskNotFound
	}
	return &card.Tasks[j], nil
}

// Subtask resolves a (card, task, subtask) address.
func (b *Board) Subtask(cardID, taskID, subtaskID int64) (*Subtask, error) {
	task, err := b.Task(cardID, taskID)
	if err != nil {
		return nil, err
	}
	k := task.subtaskIndex(subtaskID)
	if k < 0 {
		return nil, ErrSubtaskNotFound
	}
	return &task.Subtasks[k], nil
}

// RemoveCard deletes the addressed card and returns it.
func (b *Board) RemoveCard(cardID int64) (Card, error) {
	i := b.cardIndex(cardID)
	if i < 0 {
		return Card{}, ErrCardNotFound
	}
	removed := b.Cards[i]
	b.Cards = append(b.Cards[:i], b.Cards[i+1:]...)
	return removed, nil
}

// RemoveTask deletes the addressed task and returns it.
func (b *Board) RemoveTask(cardID, taskID int64) (Task, error) {
	card, err := b.Card(cardID)
	if err != nil {
		return Task{}, err
	}
	j := card.taskIndex(taskID)
	if j < 0 {
		return Task{}, ErrTaskNotFound
	}
	removed := card.Tasks[j]
	card.Tasks = append(card.Tasks[:j], card.Tasks[j+1:]...)
	return removed, nil
}

// RemoveSubtask deletes the addressed subtask and returns it.
func (b *Board) RemoveSubtask(cardID, taskID, subtaskID int64) (Subtask, error) {
	task, err := b.Task(cardID, taskID)
	if err != nil {
		return Subtask{}, err
	}
	k := task.subtaskIndex(subtaskID)
	if k < 0 {
		return Subtask{}, ErrSubtaskNotFound
	}
	removed := task.Subtasks[k]
	task.Subtasks = append(task.Subtasks[:k], task.Subtasks[k+1:]...)
	return removed, nil
}

// Tag resolves a tag id within the task's own tag list.
func (t *Task) Tag(tagID int64) (*Tag, error) {
	for i := range t.Tags {
		if t.Tags[i].ID == tagID {
			return &t.Tags[i], nil
		}
	}
	return nil, ErrTagNotFound
}

// Tag resolves a tag id within the subtask's tag list.
func (s *Subtask) Tag(tagID int64) (*Tag, error) {
	for i := range s.Tags {
		if s.Tags[i].ID == tagID {
			return &s.Tags[i], nil
		}
	}
	return nil, ErrTagNotFound
}

// RemoveTag deletes a tag from the task's tag list.
func (t *Task) RemoveTag(tagID int64) (Tag, error) {
	for i := range t.Tags {
		if t.Tags[i].ID == tagID {
			removed := t.Tags[i]
			t.Tags = append(t.Tags[:i], t.Tags[i+1:]...)
			return removed, nil
		}
	}
	return Tag{}, ErrTagNotFound
}

// RemoveTag deletes a tag from the subtask's tag list.
func (s *Subtask) RemoveTag(tagID int64) (Tag, error) {
	for i := range s.Tags {
		if s.Tags[i].ID == tagID {
			removed := s.Tags[i]
			s.Tags = append(s.Tags[:i], s.Tags[i+1:]...)
			return removed, nil
		}
	}
	return Tag{}, ErrTagNotFound
}
