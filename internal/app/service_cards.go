package app

import (
	"context"

	"taskboard/internal/model"
	"taskboard/internal/patch"
	"taskboard/internal/scope"
)

// InsertCard appends a card, allocating fresh ids for it and every
// task, subtask and tag it arrives with. Authorship of the whole
// subtree is reassigned to the caller and every executors list is
// filtered against the board membership.
func (s *Service) InsertCard(ctx context.Context, userID, boardID int64, card model.Card) (int64, error) {
	var cardID int64
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		if err := prepareCard(alloc, userID, board, &card); err != nil {
			return false, err
		}
		board.Cards = append(board.Cards, card)
		cardID = card.ID
		return true, nil
	})
	return cardID, err
}

func (s *Service) InsertTask(ctx context.Context, userID, boardID, cardID int64, task model.Task) (int64, error) {
	var taskID int64
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		card, err := board.Card(cardID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		if err := prepareTask(alloc, userID, board, boardID, cardID, &task); err != nil {
			return false, err
		}
		card.Tasks = append(card.Tasks, task)
		taskID = task.ID
		return true, nil
	})
	return taskID, err
}

func (s *Service) InsertSubtask(ctx context.Context, userID, boardID, cardID, taskID int64, subtask model.Subtask) (int64, error) {
	var subtaskID int64
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		task, err := board.Task(cardID, taskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		if err := prepareSubtask(alloc, userID, board, boardID, cardID, taskID, &subtask); err != nil {
			return false, err
		}
		task.Subtasks = append(task.Subtasks, subtask)
		subtaskID = subtask.ID
		return true, nil
	})
	return subtaskID, err
}

func (s *Service) PatchCard(ctx context.Context, userID, boardID, cardID int64, p patch.Patch) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		card, err := board.Card(cardID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		changed, err := patch.ApplyCard(card, p)
		return changed, mapPatchErr(err)
	})
	return err
}

func (s *Service) PatchTask(ctx context.Context, userID, boardID, cardID, taskID int64, p patch.Patch) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		task, err := board.Task(cardID, taskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		changed, err := patch.ApplyTask(task, p, board.SharedWith)
		return changed, mapPatchErr(err)
	})
	return err
}

func (s *Service) PatchSubtask(ctx context.Context, userID, boardID, cardID, taskID, subtaskID int64, p patch.Patch) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		subtask, err := board.Subtask(cardID, taskID, subtaskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		changed, err := patch.ApplySubtask(subtask, p, board.SharedWith)
		return changed, mapPatchErr(err)
	})
	return err
}

// DeleteCard removes the card and drops every id counter scoped under
// it, so a later card in the same board starts its children from 1
// again only if it is itself new.
func (s *Service) DeleteCard(ctx context.Context, userID, boardID, cardID int64) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		if _, err := board.RemoveCard(cardID); err != nil {
			return false, mapPatchErr(err)
		}
		alloc.reset(scope.ForCard(boardID, cardID))
		return true, nil
	})
	return err
}

func (s *Service) DeleteTask(ctx context.Context, userID, boardID, cardID, taskID int64) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		if _, err := board.RemoveTask(cardID, taskID); err != nil {
			return false, mapPatchErr(err)
		}
		alloc.reset(scope.ForTask(boardID, cardID, taskID))
		return true, nil
	})
	return err
}

func (s *Service) DeleteSubtask(ctx context.Context, userID, boardID, cardID, taskID, subtaskID int64) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		if _, err := board.RemoveSubtask(cardID, taskID, subtaskID); err != nil {
			return false, mapPatchErr(err)
		}
		alloc.reset(scope.ForSubtask(boardID, cardID, taskID, subtaskID))
		return true, nil
	})
	return err
}

func (s *Service) SetTaskTimelines(ctx context.Context, userID, boardID, cardID, taskID int64, timelines model.Timelines) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		task, err := board.Task(cardID, taskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		task.Timelines = timelines
		return true, nil
	})
	return err
}

func (s *Service) SetSubtaskTimelines(ctx context.Context, userID, boardID, cardID, taskID, subtaskID int64, timelines model.Timelines) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		subtask, err := board.Subtask(cardID, taskID, subtaskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		subtask.Timelines = timelines
		return true, nil
	})
	return err
}

func (s *Service) AddTaskTag(ctx context.Context, userID, boardID, cardID, taskID int64, tag model.Tag) (int64, error) {
	var tagID int64
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		task, err := board.Task(cardID, taskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		if err := prepareTag(alloc, scope.ForTask(boardID, cardID, taskID).Tags(), &tag); err != nil {
			return false, err
		}
		task.Tags = append(task.Tags, tag)
		tagID = tag.ID
		return true, nil
	})
	return tagID, err
}

func (s *Service) AddSubtaskTag(ctx context.Context, userID, boardID, cardID, taskID, subtaskID int64, tag model.Tag) (int64, error) {
	var tagID int64
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, alloc *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		subtask, err := board.Subtask(cardID, taskID, subtaskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		if err := prepareTag(alloc, scope.ForSubtask(boardID, cardID, taskID, subtaskID).Tags(), &tag); err != nil {
			return false, err
		}
		subtask.Tags = append(subtask.Tags, tag)
		tagID = tag.ID
		return true, nil
	})
	return tagID, err
}

func (s *Service) PatchTaskTag(ctx context.Context, userID, boardID, cardID, taskID, tagID int64, p patch.Patch) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		task, err := board.Task(cardID, taskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		tag, err := task.Tag(tagID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		changed, err := patch.ApplyTag(tag, p)
		return changed, mapPatchErr(err)
	})
	return err
}

func (s *Service) PatchSubtaskTag(ctx context.Context, userID, boardID, cardID, taskID, subtaskID, tagID int64, p patch.Patch) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		subtask, err := board.Subtask(cardID, taskID, subtaskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		tag, err := subtask.Tag(tagID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		changed, err := patch.ApplyTag(tag, p)
		return changed, mapPatchErr(err)
	})
	return err
}

func (s *Service) DeleteTaskTag(ctx context.Context, userID, boardID, cardID, taskID, tagID int64) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		task, err := board.Task(cardID, taskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		if _, err := task.RemoveTag(tagID); err != nil {
			return false, mapPatchErr(err)
		}
		return true, nil
	})
	return err
}

func (s *Service) DeleteSubtaskTag(ctx context.Context, userID, boardID, cardID, taskID, subtaskID, tagID int64) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeMember(userID, board); err != nil {
			return false, err
		}
		subtask, err := board.Subtask(cardID, taskID, subtaskID)
		if err != nil {
			return false, mapPatchErr(err)
		}
		if _, err := subtask.RemoveTag(tagID); err != nil {
			return false, mapPatchErr(err)
		}
		return true, nil
	})
	return err
}

// prepareCard readies an incoming card subtree for insertion: fresh
// ids, the caller as author, executors filtered, colors checked.
func prepareCard(alloc *allocator, userID int64, board *model.Board, card *model.Card) error {
	if card.Title == "" {
		return errInvalidInput("card title must not be empty")
	}
	if err := validateOptionalColors(card.HeaderTextColor, card.HeaderBackgroundColor, card.BackgroundColor); err != nil {
		return err
	}
	card.ID = alloc.next(scope.ForBoard(board.ID))
	card.Author = userID
	for i := range card.Tasks {
		if err := prepareTask(alloc, userID, board, board.ID, card.ID, &card.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func prepareTask(alloc *allocator, userID int64, board *model.Board, boardID, cardID int64, task *model.Task) error {
	if task.Title == "" {
		return errInvalidInput("task title must not be empty")
	}
	task.ID = alloc.next(scope.ForCard(boardID, cardID))
	task.Author = userID
	task.Executors = model.IntersectKeepOrder(task.Executors, board.SharedWith)
	for i := range task.Tags {
		if err := prepareTag(alloc, scope.ForTask(boardID, cardID, task.ID).Tags(), &task.Tags[i]); err != nil {
			return err
		}
	}
	for i := range task.Subtasks {
		if err := prepareSubtask(alloc, userID, board, boardID, cardID, task.ID, &task.Subtasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func prepareSubtask(alloc *allocator, userID int64, board *model.Board, boardID, cardID, taskID int64, subtask *model.Subtask) error {
	if subtask.Title == "" {
		return errInvalidInput("subtask title must not be empty")
	}
	subtask.ID = alloc.next(scope.ForTask(boardID, cardID, taskID))
	subtask.Author = userID
	subtask.Executors = model.IntersectKeepOrder(subtask.Executors, board.SharedWith)
	for i := range subtask.Tags {
		tagScope := scope.ForSubtask(boardID, cardID, taskID, subtask.ID).Tags()
		if err := prepareTag(alloc, tagScope, &subtask.Tags[i]); err != nil {
			return err
		}
	}
	return nil
}

func prepareTag(alloc *allocator, tagScope scope.Key, tag *model.Tag) error {
	if tag.Title == "" {
		return errInvalidInput("tag title must not be empty")
	}
	if err := validateOptionalColors(tag.TextColor, tag.BackgroundColor); err != nil {
		return err
	}
	tag.ID = alloc.next(tagScope)
	return nil
}
