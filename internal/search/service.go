package search

import (
	"context"
	"log"

	"taskboard/internal/model"
)

// Service is the facade that tries Meilisearch first and falls back to
// a row-store scan.
type Service struct {
	meili    *Meili
	fallback *Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, fallback *Fallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise scans the row store.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to store scan: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: store scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexBoard pushes the board's titles to Meilisearch, fire-and-forget.
// Called after every successful board mutation.
func (s *Service) IndexBoard(board *model.Board) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	snapshot := *board
	go func() {
		if err := s.meili.IndexBoard(&snapshot); err != nil {
			log.Printf("search: index board %d: %v", snapshot.ID, err)
		}
	}()
}

// DeleteBoard removes the board from the index, fire-and-forget.
func (s *Service) DeleteBoard(boardID int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteBoard(boardID); err != nil {
			log.Printf("search: delete board %d: %v", boardID, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
