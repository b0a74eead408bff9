package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"taskboard/internal/model"
)

const (
	idxBoards = "taskboard_boards"
	idxCards  = "taskboard_cards"
	idxTasks  = "taskboard_tasks"
)

// Meili serves title search via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. If the
// initial connection fails the client stays around and the health loop
// keeps probing; callers check Healthy before use.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	for _, uid := range []string{idxBoards, idxCards, idxTasks} {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", uid, err)
		}

		index := m.client.Index(uid)
		filterable := []interface{}{"boardId"}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", uid, err)
		}
		searchable := []string{"title"}
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes, scoped to q.BoardIDs, and merges
// the hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	if len(q.BoardIDs) == 0 {
		return nil, 0, nil
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	filter := boardFilter(q.BoardIDs)
	var queries []*meili.SearchRequest
	for _, uid := range []string{idxBoards, idxCards, idxTasks} {
		queries = append(queries, &meili.SearchRequest{
			IndexUID: uid,
			Query:    q.Text,
			Limit:    limit,
			Offset:   int64(q.Offset),
			Filter:   []string{filter},
		})
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func boardFilter(boardIDs []int64) string {
	parts := make([]string, len(boardIDs))
	for i, id := range boardIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "boardId IN [" + strings.Join(parts, ", ") + "]"
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxBoards:
		return ResultBoard
	case idxCards:
		return ResultCard
	case idxTasks:
		return ResultTask
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	return Result{
		Type:    rtyp,
		BoardID: decodeInt(hit, "boardId"),
		CardID:  decodeInt(hit, "cardId"),
		TaskID:  decodeInt(hit, "taskId"),
		Title:   decodeString(hit, "title"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

// IndexBoard pushes the board title and every card and task title into
// the indexes, replacing whatever was there for those ids.
func (m *Meili) IndexBoard(board *model.Board) error {
	boards, cards, tasks := RecordsFor(board)
	// Dropping the board's old card and task records first keeps
	// deleted entities from lingering as stale hits.
	filter := fmt.Sprintf("boardId = %d", board.ID)
	for _, uid := range []string{idxCards, idxTasks} {
		if _, err := m.client.Index(uid).DeleteDocumentsByFilter(filter, nil); err != nil {
			return err
		}
	}
	if _, err := m.client.Index(idxBoards).AddDocuments(boards, nil); err != nil {
		return err
	}
	if len(cards) > 0 {
		if _, err := m.client.Index(idxCards).AddDocuments(cards, nil); err != nil {
			return err
		}
	}
	if len(tasks) > 0 {
		if _, err := m.client.Index(idxTasks).AddDocuments(tasks, nil); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBoard removes the board and everything under it from the
// indexes.
func (m *Meili) DeleteBoard(boardID int64) error {
	filter := fmt.Sprintf("boardId = %d", boardID)
	for _, uid := range []string{idxBoards, idxCards, idxTasks} {
		if _, err := m.client.Index(uid).DeleteDocumentsByFilter(filter, nil); err != nil {
			return err
		}
	}
	return nil
}

// RecordsFor flattens a board document into index records. Record ids
// chain the nesting levels so a card id reused across boards cannot
// collide.
func RecordsFor(board *model.Board) ([]BoardRecord, []CardRecord, []TaskRecord) {
	boards := []BoardRecord{{
		ID:      strconv.FormatInt(board.ID, 10),
		Title:   board.Header.Title,
		BoardID: board.ID,
	}}
	var cards []CardRecord
	var tasks []TaskRecord
	for _, card := range board.Cards {
		cards = append(cards, CardRecord{
			ID:      fmt.Sprintf("%d_%d", board.ID, card.ID),
			Title:   card.Title,
			BoardID: board.ID,
			CardID:  card.ID,
		})
		for _, task := range card.Tasks {
			tasks = append(tasks, TaskRecord{
				ID:      fmt.Sprintf("%d_%d_%d", board.ID, card.ID, task.ID),
				Title:   task.Title,
				BoardID: board.ID,
				CardID:  card.ID,
				TaskID:  task.ID,
			})
		}
	}
	return boards, cards, tasks
}
