// Package model defines the board document tree and the user records
// the service round-trips through the row store as serialized JSON.
package model

// Timelines are the time constraints attached to tasks and subtasks.
// Instants travel as unix seconds.
type Timelines struct {
	// PreferredTime is when the work should preferably be done.
	PreferredTime int64 `json:"preferred_time"`
	// MaxTime is the hard deadline.
	MaxTime int64 `json:"max_time"`
	// ExpectedTime is the expected duration in minutes.
	ExpectedTime uint32 `json:"expected_time"`
}

// Tag is a colored label. Tag ids are unique only within the owning
// task's or subtask's tag list.
type Tag struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	TextColor       string `json:"text_color"`
	BackgroundColor string `json:"background_color"`
}

// Subtask is the innermost assignable unit of work.
type Subtask struct {
	ID        int64     `json:"id"`
	Author    int64     `json:"author"`
	Title     string    `json:"title"`
	Executors []int64   `json:"executors"`
	Exec      bool      `json:"exec"`
	Tags      []Tag     `json:"tags"`
	Timelines Timelines `json:"timelines"`
}

// Task belongs to a card and owns an ordered list of subtasks.
type Task struct {
	ID        int64     `json:"id"`
	Author    int64     `json:"author"`
	Title     string    `json:"title"`
	Executors []int64   `json:"executors"`
	Exec      bool      `json:"exec"`
	Subtasks  []Subtask `json:"subtasks"`
	Notes     string    `json:"notes"`
	Tags      []Tag     `json:"tags"`
	Timelines Timelines `json:"timelines"`
}

// Card belongs to a board and owns an ordered list of tasks.
type Card struct {
	ID                    int64  `json:"id"`
	Author                int64  `json:"author"`
	Title                 string `json:"title"`
	Tasks                 []Task `json:"tasks"`
	HeaderTextColor       string `json:"header_text_color"`
	HeaderBackgroundColor string `json:"header_background_color"`
	BackgroundColor       string `json:"background_color"`
}

// BoardHeader is the board-level title block. Only the board author may
// change it.
type BoardHeader struct {
	Title                 string `json:"title"`
	HeaderTextColor       string `json:"header_text_color"`
	HeaderBackgroundColor string `json:"header_background_color"`
}

// Background is either a solid color or a reference to an external
// image. Exactly one field is set.
type Background struct {
	Color string `json:"color,omitempty"`
	URL   string `json:"url,omitempty"`
}

// IsColor reports whether the background is a solid color.
func (b Background) IsColor() bool { return b.Color != "" }

// Board is the full document: header, membership, ordered cards.
type Board struct {
	ID         int64       `json:"id"`
	Author     int64       `json:"author"`
	SharedWith []int64     `json:"shared_with"`
	Header     BoardHeader `json:"header"`
	Cards      []Card      `json:"cards"`
	Background Background  `json:"background"`
}

// IsMember reports whether the user may read the board and mutate its
// children. The author is always a member.
func (b *Board) IsMember(userID int64) bool {
	for _, id := range b.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// BoardSummary is the short listing form of a board.
type BoardSummary struct {
	ID                    int64  `json:"id"`
	Title                 string `json:"title"`
	HeaderTextColor       string `json:"header_text_color"`
	HeaderBackgroundColor string `json:"header_background_color"`
}

// Token is the stored form of a session token: the SHA-256 digest of
// the issued secret plus the last time it was presented.
type Token struct {
	Digest   string `json:"digest"`
	LastUsed int64  `json:"last_used"`
}

// Credentials is the user credential blob persisted as one serialized
// column. The bcrypt hash carries its own salt.
type Credentials struct {
	PasswordHash string  `json:"password_hash"`
	Tokens       []Token `json:"tokens"`
}

// AccountPlan is the billing record. It is consumed, never produced,
// by this service.
type AccountPlan struct {
	// BilledForever marks accounts that never expire.
	BilledForever bool `json:"billed_forever"`
	// PaymentData is opaque payload for the external billing API.
	PaymentData string `json:"payment_data"`
	// PaymentTrusted reports whether LastPayment may be trusted without
	// consulting the billing provider.
	PaymentTrusted bool `json:"payment_trusted"`
	// LastPayment is the unix time of the most recent payment.
	LastPayment int64 `json:"last_payment"`
}

// IntersectKeepOrder returns the ids that are present in allowed,
// preserving the order of ids. Used to drop executors whose board
// access has been revoked.
func IntersectKeepOrder(ids, allowed []int64) []int64 {
	allowedSet := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := allowedSet[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}
