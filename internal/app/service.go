// Package app wires the row store, the session cache and the search
// index behind the board service, and exposes it over HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/color"
	"taskboard/internal/model"
	"taskboard/internal/patch"
	"taskboard/internal/scope"
	"taskboard/internal/search"
	"taskboard/internal/session"
	"taskboard/internal/store"
)

// Store is the row-store surface the service needs.
type Store interface {
	LoadBoard(ctx context.Context, boardID int64) (*model.Board, int64, error)
	SaveBoard(ctx context.Context, board *model.Board, rev int64, counters []store.CounterUpdate, resets []scope.Key) error
	CreateBoard(ctx context.Context, board *model.Board) (int64, error)
	DeleteBoard(ctx context.Context, board *model.Board) error
	NextID(ctx context.Context, key scope.Key) int64
	BoardSummaries(ctx context.Context, boardIDs []int64) ([]model.BoardSummary, error)

	CreateUser(ctx context.Context, login string, credentials model.Credentials) (int64, error)
	UserByLogin(ctx context.Context, login string) (int64, model.Credentials, error)
	Credentials(ctx context.Context, userID int64) (model.Credentials, error)
	SaveCredentials(ctx context.Context, userID int64, credentials model.Credentials) error
	AccountPlan(ctx context.Context, userID int64) (model.AccountPlan, error)
	SharedBoards(ctx context.Context, userID int64) ([]int64, error)

	CreateSignupKey(ctx context.Context, key string) error
	ConsumeSignupKey(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	cache  *session.Cache  // nil when Redis is not configured
	search *search.Service // nil when search is not configured

	adminKey      string
	tokenTTL      time.Duration
	billingWindow time.Duration

	now  func() time.Time
	ping func(ctx context.Context) error
}

func NewService(st Store, cache *session.Cache, searcher *search.Service, adminKey string, tokenTTL, billingWindow time.Duration) *Service {
	return &Service{
		store:         st,
		cache:         cache,
		search:        searcher,
		adminKey:      adminKey,
		tokenTTL:      tokenTTL,
		billingWindow: billingWindow,
		now:           time.Now,
	}
}

// SetPing installs the readiness probe, normally the database ping.
func (s *Service) SetPing(ping func(ctx context.Context) error) {
	s.ping = ping
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// A lost rev compare-and-swap means another writer landed between our
// load and save; the whole mutation is re-run against the fresh
// document this many times before giving up.
const maxSaveAttempts = 3

// withBoard runs one load-mutate-save cycle under the rev
// compare-and-swap, retrying on conflict, and reindexes the document on
// success. mutate receives the freshly loaded board and an allocator
// whose issued counters land in the same write batch, and reports
// whether it changed anything; an untouched document is never written
// back, so a patch with no recognized fields leaves rev alone.
func (s *Service) withBoard(ctx context.Context, boardID int64, mutate func(board *model.Board, alloc *allocator) (bool, error)) (*model.Board, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		board, rev, err := s.store.LoadBoard(ctx, boardID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("board not found")
		}
		if err != nil {
			return nil, fmt.Errorf("load board: %w", err)
		}

		alloc := newAllocator(ctx, s.store)
		changed, err := mutate(board, alloc)
		if err != nil {
			return nil, err
		}
		if !changed {
			return board, nil
		}

		err = s.store.SaveBoard(ctx, board, rev, alloc.counters, alloc.resets)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save board: %w", err)
		}
		s.indexBoard(board)
		return board, nil
	}
	return nil, errInternal("board update kept conflicting, try again")
}

func (s *Service) indexBoard(board *model.Board) {
	if s.search != nil {
		s.search.IndexBoard(board)
	}
}

// allocator issues ids during one mutation and remembers which counters
// to persist and which counter subtrees to drop. Repeated allocations
// in the same scope within one mutation get sequential ids without
// another store read.
type allocator struct {
	ctx      context.Context
	ids      Store
	pending  map[string]int64
	counters []store.CounterUpdate
	resets   []scope.Key
}

func newAllocator(ctx context.Context, ids Store) *allocator {
	return &allocator{ctx: ctx, ids: ids, pending: map[string]int64{}}
}

func (a *allocator) next(key scope.Key) int64 {
	rendered := key.String()
	id, ok := a.pending[rendered]
	if !ok {
		id = a.ids.NextID(a.ctx, key)
	}
	a.pending[rendered] = id + 1

	for i := range a.counters {
		if a.counters[i].Key.String() == rendered {
			a.counters[i].Next = id + 1
			return id
		}
	}
	a.counters = append(a.counters, store.CounterUpdate{Key: key, Next: id + 1})
	return id
}

func (a *allocator) reset(key scope.Key) {
	a.resets = append(a.resets, key)
}

func authorizeAuthor(userID int64, board *model.Board) error {
	if board.Author != userID {
		return errUnauthorized()
	}
	return nil
}

func authorizeMember(userID int64, board *model.Board) error {
	if !board.IsMember(userID) {
		return errUnauthorized()
	}
	return nil
}

// CreateBoardInput carries the board-level fields a fresh board starts
// with. Cards always start empty.
type CreateBoardInput struct {
	Title                 string           `json:"title"`
	HeaderTextColor       string           `json:"header_text_color"`
	HeaderBackgroundColor string           `json:"header_background_color"`
	Background            model.Background `json:"background"`
}

func (s *Service) CreateBoard(ctx context.Context, userID int64, in CreateBoardInput) (int64, error) {
	if in.Title == "" {
		return 0, errInvalidInput("board title must not be empty")
	}
	if err := validateOptionalColors(in.HeaderTextColor, in.HeaderBackgroundColor); err != nil {
		return 0, err
	}
	if err := validateBackground(in.Background); err != nil {
		return 0, err
	}

	if err := s.checkBoardQuota(ctx, userID); err != nil {
		return 0, err
	}

	board := &model.Board{
		Author:     userID,
		SharedWith: []int64{userID},
		Header: model.BoardHeader{
			Title:                 in.Title,
			HeaderTextColor:       in.HeaderTextColor,
			HeaderBackgroundColor: in.HeaderBackgroundColor,
		},
		Cards:      []model.Card{},
		Background: in.Background,
	}
	boardID, err := s.store.CreateBoard(ctx, board)
	if err != nil {
		return 0, fmt.Errorf("create board: %w", err)
	}
	s.indexBoard(board)
	return boardID, nil
}

// checkBoardQuota rejects a second board for accounts that are not
// currently paid.
func (s *Service) checkBoardQuota(ctx context.Context, userID int64) error {
	boardIDs, err := s.store.SharedBoards(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return errUnauthorized()
	}
	if err != nil {
		return fmt.Errorf("load shared boards: %w", err)
	}
	if len(boardIDs) == 0 {
		return nil
	}
	plan, err := s.store.AccountPlan(ctx, userID)
	if err != nil {
		return fmt.Errorf("load account plan: %w", err)
	}
	if !auth.Billed(plan, s.now(), s.billingWindow) {
		return errQuotaExceeded()
	}
	return nil
}

func (s *Service) ListBoards(ctx context.Context, userID int64) ([]model.BoardSummary, error) {
	boardIDs, err := s.store.SharedBoards(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUnauthorized()
	}
	if err != nil {
		return nil, fmt.Errorf("load shared boards: %w", err)
	}
	summaries, err := s.store.BoardSummaries(ctx, boardIDs)
	if err != nil {
		return nil, fmt.Errorf("load board summaries: %w", err)
	}
	return summaries, nil
}

func (s *Service) GetBoard(ctx context.Context, userID, boardID int64) (*model.Board, error) {
	board, _, err := s.store.LoadBoard(ctx, boardID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errNotFound("board not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	if err := authorizeMember(userID, board); err != nil {
		return nil, err
	}
	return board, nil
}

// PatchBoard updates board-level fields. Only the author may touch the
// header and background.
func (s *Service) PatchBoard(ctx context.Context, userID, boardID int64, p patch.Patch) error {
	_, err := s.withBoard(ctx, boardID, func(board *model.Board, _ *allocator) (bool, error) {
		if err := authorizeAuthor(userID, board); err != nil {
			return false, err
		}
		changed, err := patch.ApplyBoard(board, p)
		return changed, mapPatchErr(err)
	})
	return err
}

func (s *Service) DeleteBoard(ctx context.Context, userID, boardID int64) error {
	board, _, err := s.store.LoadBoard(ctx, boardID)
	if errors.Is(err, store.ErrNotFound) {
		return errNotFound("board not found")
	}
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	if err := authorizeAuthor(userID, board); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, board); err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	if s.search != nil {
		s.search.DeleteBoard(boardID)
	}
	return nil
}

func (s *Service) SearchBoards(ctx context.Context, userID int64, text string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	boardIDs, err := s.store.SharedBoards(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return search.Response{}, errUnauthorized()
	}
	if err != nil {
		return search.Response{}, fmt.Errorf("load shared boards: %w", err)
	}
	return s.search.Search(ctx, search.Query{
		Text:     text,
		BoardIDs: boardIDs,
		Limit:    limit,
		Offset:   offset,
	}), nil
}

func validateOptionalColors(values ...string) error {
	for _, value := range values {
		if value == "" {
			continue
		}
		if err := color.Validate(value); err != nil {
			return errInvalidInput(err.Error())
		}
	}
	return nil
}

func validateBackground(background model.Background) error {
	if background.Color != "" && background.URL != "" {
		return errInvalidInput("background carries both a color and a url")
	}
	if background.IsColor() {
		if err := color.Validate(background.Color); err != nil {
			return errInvalidInput(err.Error())
		}
	}
	return nil
}

// mapPatchErr translates patch and tree failures into the wire
// taxonomy.
func mapPatchErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrCardNotFound):
		return errNotFound("card not found")
	case errors.Is(err, model.ErrTaskNotFound):
		return errNotFound("task not found")
	case errors.Is(err, model.ErrSubtaskNotFound):
		return errNotFound("subtask not found")
	case errors.Is(err, model.ErrTagNotFound):
		return errNotFound("tag not found")
	default:
		return errInvalidInput(err.Error())
	}
}
