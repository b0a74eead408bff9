package search

import (
	"context"
	"fmt"
	"strings"

	"taskboard/internal/model"
)

// BoardLoader is the slice of the row store the fallback needs.
type BoardLoader interface {
	LoadBoard(ctx context.Context, boardID int64) (*model.Board, int64, error)
}

// Fallback answers queries by scanning the caller's boards straight
// from the row store. Slower than the index but always truthful.
type Fallback struct {
	boards BoardLoader
}

func NewFallback(boards BoardLoader) *Fallback {
	return &Fallback{boards: boards}
}

// Search walks every board in q.BoardIDs and collects title matches.
// Matching is a case-insensitive substring test.
func (f *Fallback) Search(ctx context.Context, q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}

	var results []Result
	for _, boardID := range q.BoardIDs {
		board, _, err := f.boards.LoadBoard(ctx, boardID)
		if err != nil {
			return nil, 0, fmt.Errorf("scan board %d: %w", boardID, err)
		}
		results = append(results, matchBoard(board, needle)...)
	}

	total := len(results)
	return page(results, q.Offset, q.Limit), total, nil
}

func matchBoard(board *model.Board, needle string) []Result {
	var results []Result
	if strings.Contains(strings.ToLower(board.Header.Title), needle) {
		results = append(results, Result{
			Type:    ResultBoard,
			BoardID: board.ID,
			Title:   board.Header.Title,
		})
	}
	for _, card := range board.Cards {
		if strings.Contains(strings.ToLower(card.Title), needle) {
			results = append(results, Result{
				Type:    ResultCard,
				BoardID: board.ID,
				CardID:  card.ID,
				Title:   card.Title,
			})
		}
		for _, task := range card.Tasks {
			if strings.Contains(strings.ToLower(task.Title), needle) {
				results = append(results, Result{
					Type:    ResultTask,
					BoardID: board.ID,
					CardID:  card.ID,
					TaskID:  task.ID,
					Title:   task.Title,
				})
			}
		}
	}
	return results
}

func page(results []Result, offset, limit int) []Result {
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}
