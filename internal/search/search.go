// Package search finds boards, cards and tasks by title. Meilisearch
// serves queries when it is reachable; otherwise the caller's boards
// are scanned straight from the row store.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultBoard ResultType = "board"
	ResultCard  ResultType = "card"
	ResultTask  ResultType = "task"
)

// Result is a single search hit returned to the caller. CardID and
// TaskID are set only for the levels the hit carries.
type Result struct {
	Type    ResultType `json:"type"`
	BoardID int64      `json:"board_id"`
	CardID  int64      `json:"card_id,omitempty"`
	TaskID  int64      `json:"task_id,omitempty"`
	Title   string     `json:"title"`
}

// Query describes a search request. BoardIDs scopes the query to the
// boards the requesting user belongs to.
type Query struct {
	Text     string
	BoardIDs []int64
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// BoardRecord is the data indexed for a board.
type BoardRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	BoardID int64  `json:"boardId"`
}

// CardRecord is the data indexed for a card.
type CardRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	BoardID int64  `json:"boardId"`
	CardID  int64  `json:"cardId"`
}

// TaskRecord is the data indexed for a task.
type TaskRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	BoardID int64  `json:"boardId"`
	CardID  int64  `json:"cardId"`
	TaskID  int64  `json:"taskId"`
}
