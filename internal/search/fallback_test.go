package search

import (
	"context"
	"testing"

	"taskboard/internal/model"
)

type memoryBoards map[int64]*model.Board

func (m memoryBoards) LoadBoard(ctx context.Context, boardID int64) (*model.Board, int64, error) {
	return m[boardID], 1, nil
}

func testBoards() memoryBoards {
	return memoryBoards{
		1: {
			ID:     1,
			Header: model.BoardHeader{Title: "Release planning"},
			Cards: []model.Card{
				{ID: 1, Title: "Backlog", Tasks: []model.Task{
					{ID: 1, Title: "Plan the release notes"},
					{ID: 2, Title: "Fix login"},
				}},
				{ID: 2, Title: "Done"},
			},
		},
		2: {
			ID:     2,
			Header: model.BoardHeader{Title: "Groceries"},
			Cards: []model.Card{
				{ID: 1, Title: "Weekly plan"},
			},
		},
	}
}

func TestFallbackMatchesAllLevels(t *testing.T) {
	f := NewFallback(testBoards())

	results, total, err := f.Search(context.Background(), Query{
		Text:     "plan",
		BoardIDs: []int64{1, 2},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 hits, got %d: %+v", total, results)
	}

	types := map[ResultType]int{}
	for _, r := range results {
		types[r.Type]++
	}
	if types[ResultBoard] != 1 || types[ResultCard] != 2 || types[ResultTask] != 1 {
		t.Errorf("unexpected hit mix: %v", types)
	}
}

func TestFallbackScopesToGivenBoards(t *testing.T) {
	f := NewFallback(testBoards())

	results, _, err := f.Search(context.Background(), Query{
		Text:     "plan",
		BoardIDs: []int64{2},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.BoardID != 2 {
			t.Errorf("hit from out-of-scope board: %+v", r)
		}
	}
}

func TestFallbackMatchIsCaseInsensitive(t *testing.T) {
	f := NewFallback(testBoards())

	results, _, err := f.Search(context.Background(), Query{
		Text:     "GROCERIES",
		BoardIDs: []int64{2},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Type != ResultBoard {
		t.Fatalf("expected the board title hit, got %+v", results)
	}
}

func TestFallbackPagination(t *testing.T) {
	f := NewFallback(testBoards())

	results, total, err := f.Search(context.Background(), Query{
		Text:     "plan",
		BoardIDs: []int64{1, 2},
		Offset:   1,
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 4 {
		t.Errorf("total should count all hits, got %d", total)
	}
	if len(results) != 2 {
		t.Errorf("expected a page of 2, got %d", len(results))
	}
}

func TestFallbackEmptyQuery(t *testing.T) {
	f := NewFallback(testBoards())

	results, total, err := f.Search(context.Background(), Query{
		Text:     "   ",
		BoardIDs: []int64{1, 2},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 0 || len(results) != 0 {
		t.Errorf("blank query should match nothing, got %+v", results)
	}
}

func TestRecordsForFlattensTheDocument(t *testing.T) {
	board := testBoards()[1]
	boards, cards, tasks := RecordsFor(board)

	if len(boards) != 1 || boards[0].ID != "1" || boards[0].Title != "Release planning" {
		t.Errorf("unexpected board records: %+v", boards)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 card records, got %d", len(cards))
	}
	if cards[0].ID != "1_1" || cards[1].ID != "1_2" {
		t.Errorf("card record ids must chain board and card: %+v", cards)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 task records, got %d", len(tasks))
	}
	if tasks[1].ID != "1_1_2" || tasks[1].TaskID != 2 {
		t.Errorf("unexpected task record: %+v", tasks[1])
	}
}
