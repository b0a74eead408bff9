// Package scope names the nesting contexts that id counters are tracked
// against: a board (card ids), a card (task ids), a task (subtask ids),
// or the tag list of a task or subtask.
package scope

import (
	"fmt"
	"strings"
)

// Key is a composite scope identifier. Keys are built from typed ids
// rather than concatenated strings, so a card id of 32 can never collide
// with a card/task pair (3, 2). The rendered form uses one letter per
// level plus a '/' separator: "b7", "b7/c3", "b7/c3/t2/s4/tags".
type Key struct {
	segments []string
}

// ForBoard is the scope of card ids within a board.
func ForBoard(boardID int64) Key {
	return Key{segments: []string{fmt.Sprintf("b%d", boardID)}}
}

// ForCard is the scope of task ids within a card.
func ForCard(boardID, cardID int64) Key {
	return ForBoard(boardID).child('c', cardID)
}

// ForTask is the scope of subtask ids within a task.
func ForTask(boardID, cardID, taskID int64) Key {
	return ForCard(boardID, cardID).child('t', taskID)
}

// ForSubtask names a subtask; it only exists as a parent for a tag list.
func ForSubtask(boardID, cardID, taskID, subtaskID int64) Key {
	return ForTask(boardID, cardID, taskID).child('s', subtaskID)
}

// Tags is the scope of tag ids within the owner's tag list. Valid owners
// are task and subtask keys.
func (k Key) Tags() Key {
	return Key{segments: append(append([]string{}, k.segments...), "tags")}
}

func (k Key) child(level byte, id int64) Key {
	return Key{segments: append(append([]string{}, k.segments...), fmt.Sprintf("%c%d", level, id))}
}

// String renders the key for storage in the counter table.
func (k Key) String() string {
	return strings.Join(k.segments, "/")
}

// PrefixPattern is the LIKE pattern matching every key strictly below
// this one. The trailing separator keeps "b7/c1" from matching "b7/c10".
func (k Key) PrefixPattern() string {
	return k.String() + "/%"
}
