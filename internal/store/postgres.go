// Package store is the postgres row store. Board documents and user
// records keep their nested parts as serialized JSON columns; every
// document write is a compare-and-swap on the board's rev column so two
// concurrent read-modify-write cycles can never silently overwrite each
// other.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"taskboard/internal/model"
	"taskboard/internal/scope"
)

var (
	// ErrNotFound reports that the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a lost compare-and-swap or a unique-column
	// collision. Callers reload and retry, or surface the collision.
	ErrConflict = errors.New("conflict")
)

// CounterUpdate is one id counter to persist alongside a board write.
// Next is the value the next allocation in that scope must return.
type CounterUpdate struct {
	Key  scope.Key
	Next int64
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// LoadBoard returns the full board document and the rev the caller must
// present to SaveBoard.
func (s *PostgresStore) LoadBoard(ctx context.Context, boardID int64) (*model.Board, int64, error) {
	const query = `SELECT author, shared_with, header, cards, background, rev FROM boards WHERE id=$1`
	var (
		rawShared, rawHeader, rawCards, rawBackground string
		rev                                           int64
	)
	board := &model.Board{ID: boardID}
	err := s.db.QueryRowContext(ctx, query, boardID).
		Scan(&board.Author, &rawShared, &rawHeader, &rawCards, &rawBackground, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load board %d: %w", boardID, err)
	}
	if err := json.Unmarshal([]byte(rawShared), &board.SharedWith); err != nil {
		return nil, 0, fmt.Errorf("decode board %d shared_with: %w", boardID, err)
	}
	if err := json.Unmarshal([]byte(rawHeader), &board.Header); err != nil {
		return nil, 0, fmt.Errorf("decode board %d header: %w", boardID, err)
	}
	if err := json.Unmarshal([]byte(rawCards), &board.Cards); err != nil {
		return nil, 0, fmt.Errorf("decode board %d cards: %w", boardID, err)
	}
	if err := json.Unmarshal([]byte(rawBackground), &board.Background); err != nil {
		return nil, 0, fmt.Errorf("decode board %d background: %w", boardID, err)
	}
	return board, rev, nil
}

// SaveBoard writes the document back together with the id counters the
// mutation touched and the counter subtrees it orphaned, in one
// transaction. The write only lands if the row still carries rev; a
// concurrent writer having bumped it yields ErrConflict.
func (s *PostgresStore) SaveBoard(ctx context.Context, board *model.Board, rev int64, counters []CounterUpdate, resets []scope.Key) error {
	rawShared, rawHeader, rawCards, rawBackground, err := encodeBoard(board)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save board: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE boards
		SET shared_with=$2, header=$3, cards=$4, background=$5, rev=rev+1
		WHERE id=$1 AND rev=$6
	`, board.ID, rawShared, rawHeader, rawCards, rawBackground, rev)
	if err != nil {
		return fmt.Errorf("save board %d: %w", board.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save board %d: %w", board.ID, err)
	}
	if n == 0 {
		return ErrConflict
	}

	for _, c := range counters {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO id_seqs (id, val) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET val=EXCLUDED.val
		`, c.Key.String(), c.Next); err != nil {
			return fmt.Errorf("save counter %s: %w", c.Key, err)
		}
	}
	for _, key := range resets {
		if err := dropCountersTx(ctx, tx, key); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save board %d: %w", board.ID, err)
	}
	return nil
}

// CreateBoard inserts the document and registers the new id in every
// member's shared_boards list.
func (s *PostgresStore) CreateBoard(ctx context.Context, board *model.Board) (int64, error) {
	rawShared, rawHeader, rawCards, rawBackground, err := encodeBoard(board)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create board: %w", err)
	}
	defer tx.Rollback()

	var boardID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO boards (author, shared_with, header, cards, background)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, board.Author, rawShared, rawHeader, rawCards, rawBackground).Scan(&boardID)
	if err != nil {
		return 0, fmt.Errorf("insert board: %w", err)
	}

	for _, userID := range board.SharedWith {
		if err := addSharedBoardTx(ctx, tx, userID, boardID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create board: %w", err)
	}
	board.ID = boardID
	return boardID, nil
}

// DeleteBoard removes the document, unregisters it from every member's
// shared_boards list and drops every id counter under its scope.
func (s *PostgresStore) DeleteBoard(ctx context.Context, board *model.Board) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete board: %w", err)
	}
	defer tx.Rollback()

	for _, userID := range board.SharedWith {
		if err := removeSharedBoardTx(ctx, tx, userID, board.ID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, board.ID); err != nil {
		return fmt.Errorf("delete board %d: %w", board.ID, err)
	}
	if err := dropCountersTx(ctx, tx, scope.ForBoard(board.ID)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete board %d: %w", board.ID, err)
	}
	return nil
}

// NextID reads the next id for the scope. A missing row, and any read
// failure, count as a fresh scope: ids start at 1 and the truth is
// re-established when the counter is written back.
func (s *PostgresStore) NextID(ctx context.Context, key scope.Key) int64 {
	var val int64
	err := s.db.QueryRowContext(ctx, `SELECT val FROM id_seqs WHERE id=$1`, key.String()).Scan(&val)
	if err != nil || val < 1 {
		return 1
	}
	return val
}

// BoardSummaries resolves ids to their short listing form, preserving
// the order given. Ids without a row are skipped, so a stale
// shared_boards entry degrades to an absent listing rather than an
// error.
func (s *PostgresStore) BoardSummaries(ctx context.Context, boardIDs []int64) ([]model.BoardSummary, error) {
	summaries := make([]model.BoardSummary, 0, len(boardIDs))
	for _, boardID := range boardIDs {
		var rawHeader string
		err := s.db.QueryRowContext(ctx, `SELECT header FROM boards WHERE id=$1`, boardID).Scan(&rawHeader)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load board %d header: %w", boardID, err)
		}
		var header model.BoardHeader
		if err := json.Unmarshal([]byte(rawHeader), &header); err != nil {
			return nil, fmt.Errorf("decode board %d header: %w", boardID, err)
		}
		summaries = append(summaries, model.BoardSummary{
			ID:                    boardID,
			Title:                 header.Title,
			HeaderTextColor:       header.HeaderTextColor,
			HeaderBackgroundColor: header.HeaderBackgroundColor,
		})
	}
	return summaries, nil
}

// CreateUser inserts a fresh user. A taken login yields ErrConflict.
func (s *PostgresStore) CreateUser(ctx context.Context, login string, credentials model.Credentials) (int64, error) {
	rawCredentials, err := json.Marshal(credentials)
	if err != nil {
		return 0, fmt.Errorf("encode credentials: %w", err)
	}
	var userID int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (login, shared_boards, credentials, account_plan)
		VALUES ($1, '[]', $2, '{}')
		RETURNING id
	`, login, string(rawCredentials)).Scan(&userID)
	if isUniqueViolation(err) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return userID, nil
}

// UserByLogin resolves a login to the user id and credential blob.
func (s *PostgresStore) UserByLogin(ctx context.Context, login string) (int64, model.Credentials, error) {
	var (
		userID         int64
		rawCredentials string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, credentials FROM users WHERE login=$1`, login).
		Scan(&userID, &rawCredentials)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.Credentials{}, ErrNotFound
	}
	if err != nil {
		return 0, model.Credentials{}, fmt.Errorf("lookup user %q: %w", login, err)
	}
	var credentials model.Credentials
	if err := json.Unmarshal([]byte(rawCredentials), &credentials); err != nil {
		return 0, model.Credentials{}, fmt.Errorf("decode credentials for %q: %w", login, err)
	}
	return userID, credentials, nil
}

func (s *PostgresStore) Credentials(ctx context.Context, userID int64) (model.Credentials, error) {
	var rawCredentials string
	err := s.db.QueryRowContext(ctx, `SELECT credentials FROM users WHERE id=$1`, userID).Scan(&rawCredentials)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credentials{}, ErrNotFound
	}
	if err != nil {
		return model.Credentials{}, fmt.Errorf("load credentials for user %d: %w", userID, err)
	}
	var credentials model.Credentials
	if err := json.Unmarshal([]byte(rawCredentials), &credentials); err != nil {
		return model.Credentials{}, fmt.Errorf("decode credentials for user %d: %w", userID, err)
	}
	return credentials, nil
}

func (s *PostgresStore) SaveCredentials(ctx context.Context, userID int64, credentials model.Credentials) error {
	rawCredentials, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET credentials=$2 WHERE id=$1`, userID, string(rawCredentials))
	if err != nil {
		return fmt.Errorf("save credentials for user %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AccountPlan(ctx context.Context, userID int64) (model.AccountPlan, error) {
	var rawPlan string
	err := s.db.QueryRowContext(ctx, `SELECT account_plan FROM users WHERE id=$1`, userID).Scan(&rawPlan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccountPlan{}, ErrNotFound
	}
	if err != nil {
		return model.AccountPlan{}, fmt.Errorf("load account plan for user %d: %w", userID, err)
	}
	var plan model.AccountPlan
	if err := json.Unmarshal([]byte(rawPlan), &plan); err != nil {
		return model.AccountPlan{}, fmt.Errorf("decode account plan for user %d: %w", userID, err)
	}
	return plan, nil
}

// SharedBoards returns the board ids the user belongs to, in the order
// they were added.
func (s *PostgresStore) SharedBoards(ctx context.Context, userID int64) ([]int64, error) {
	var rawShared string
	err := s.db.QueryRowContext(ctx, `SELECT shared_boards FROM users WHERE id=$1`, userID).Scan(&rawShared)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load shared boards for user %d: %w", userID, err)
	}
	var boardIDs []int64
	if err := json.Unmarshal([]byte(rawShared), &boardIDs); err != nil {
		return nil, fmt.Errorf("decode shared boards for user %d: %w", userID, err)
	}
	return boardIDs, nil
}

// CreateSignupKey stores a single-use registration key.
func (s *PostgresStore) CreateSignupKey(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO signup_keys (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return fmt.Errorf("insert signup key: %w", err)
	}
	return nil
}

// ConsumeSignupKey burns a registration key. An unknown or already-used
// key yields ErrNotFound; the delete makes reuse a race at most one
// caller can win.
func (s *PostgresStore) ConsumeSignupKey(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM signup_keys WHERE key=$1`, key)
	if err != nil {
		return fmt.Errorf("consume signup key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume signup key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeBoard(board *model.Board) (shared, header, cards, background string, err error) {
	sharedWith := board.SharedWith
	if sharedWith == nil {
		sharedWith = []int64{}
	}
	rawShared, err := json.Marshal(sharedWith)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode shared_with: %w", err)
	}
	rawHeader, err := json.Marshal(board.Header)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode header: %w", err)
	}
	boardCards := board.Cards
	if boardCards == nil {
		boardCards = []model.Card{}
	}
	rawCards, err := json.Marshal(boardCards)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode cards: %w", err)
	}
	rawBackground, err := json.Marshal(board.Background)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode background: %w", err)
	}
	return string(rawShared), string(rawHeader), string(rawCards), string(rawBackground), nil
}

// dropCountersTx deletes the scope's own counter and every counter
// nested below it.
func dropCountersTx(ctx context.Context, tx *sql.Tx, key scope.Key) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM id_seqs WHERE id=$1 OR id LIKE $2`,
		key.String(), key.PrefixPattern()); err != nil {
		return fmt.Errorf("drop counters under %s: %w", key, err)
	}
	return nil
}

func addSharedBoardTx(ctx context.Context, tx *sql.Tx, userID, boardID int64) error {
	boardIDs, err := sharedBoardsForUpdateTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	for _, id := range boardIDs {
		if id == boardID {
			return nil
		}
	}
	return writeSharedBoardsTx(ctx, tx, userID, append(boardIDs, boardID))
}

func removeSharedBoardTx(ctx context.Context, tx *sql.Tx, userID, boardID int64) error {
	boardIDs, err := sharedBoardsForUpdateTx(ctx, tx, userID)
	if errors.Is(err, ErrNotFound) {
		// A deleted account may linger in shared_with.
		return nil
	}
	if err != nil {
		return err
	}
	kept := boardIDs[:0]
	for _, id := range boardIDs {
		if id != boardID {
			kept = append(kept, id)
		}
	}
	return writeSharedBoardsTx(ctx, tx, userID, kept)
}

func sharedBoardsForUpdateTx(ctx context.Context, tx *sql.Tx, userID int64) ([]int64, error) {
	var rawShared string
	err := tx.QueryRowContext(ctx, `SELECT shared_boards FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&rawShared)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load shared boards for user %d: %w", userID, err)
	}
	var boardIDs []int64
	if err := json.Unmarshal([]byte(rawShared), &boardIDs); err != nil {
		return nil, fmt.Errorf("decode shared boards for user %d: %w", userID, err)
	}
	return boardIDs, nil
}

func writeSharedBoardsTx(ctx context.Context, tx *sql.Tx, userID int64, boardIDs []int64) error {
	if boardIDs == nil {
		boardIDs = []int64{}
	}
	rawShared, err := json.Marshal(boardIDs)
	if err != nil {
		return fmt.Errorf("encode shared boards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET shared_boards=$2 WHERE id=$1`, userID, string(rawShared)); err != nil {
		return fmt.Errorf("save shared boards for user %d: %w", userID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
