package board

import (
	"fmt"
	"strings"
)

// Session represents one collaborative canvas instance and its lifecycle
// state. A session is identified by the content digest of its initial canvas
// buffer; Revision names the digest of the latest accepted buffer. Rows,
// Columns, and Palette are fixed for the session lifetime.
type Session struct {
	Hash               string      `json:"hash"`                 // digest of the initial canvas; session identifier
	Type               SessionType `json:"type"`                 // lobby class (free/premium/ultimate)
	Rows               int         `json:"rows"`                 // grid height in cells
	Columns            int         `json:"columns"`              // grid width in cells
	Palette            []string    `json:"palette"`              // ordered hex color values, fixed per session
	Revision           string      `json:"revision"`             // digest of the latest accepted canvas buffer
	Prompt             string      `json:"prompt"`               // agreed prompt text, mutable only during the prompt phase
	Iteration          int         `json:"iteration"`            // 0 = prompt phase, 1..MaxIterations-1 = painting, MaxIterations = finalized
	MaxIterations      int         `json:"max_iterations"`       // terminal iteration counter value
	IterationStartedAt int64       `json:"iteration_started_at"` // Unix seconds when the current iteration opened
	CreatedAt          int64       `json:"created_at"`           // Unix seconds when the session was created
}

// SessionType classifies a session's lobby. Free sessions are seeded by the
// engine; premium lobbies are participant-created.
type SessionType int

const (
	SessionTypeFree SessionType = iota
	SessionTypePremium
	SessionTypeUltimate
)

// Phase is the lifecycle phase derived from the iteration counter.
type Phase string

const (
	// PhasePrompt accepts prompt submissions until consensus is reached.
	PhasePrompt Phase = "prompt"

	// PhasePainting accepts paint submissions for timed iterations.
	PhasePainting Phase = "painting"

	// PhaseFinalized accepts nothing; the session is an immutable artifact.
	PhaseFinalized Phase = "finalized"
)

// Phase derives the lifecycle phase from the iteration counter.
func (s *Session) Phase() Phase {
	switch {
	case s.Iteration == 0:
		return PhasePrompt
	case s.Iteration >= s.MaxIterations:
		return PhaseFinalized
	default:
		return PhasePainting
	}
}

// Area returns the number of cells in the canvas.
func (s *Session) Area() int {
	return s.Rows * s.Columns
}

// Validate checks if the Session has valid field values.
// Returns an error if any validation fails.
func (s *Session) Validate() error {
	if !IsValidDigest(s.Hash) {
		return fmt.Errorf("invalid session hash: not a 32-byte hex digest")
	}

	if !IsValidDigest(s.Revision) {
		return fmt.Errorf("invalid revision: not a 32-byte hex digest")
	}

	if s.Rows < 1 || s.Columns < 1 {
		return fmt.Errorf("invalid dimensions: %dx%d", s.Columns, s.Rows)
	}

	// The finalized artifact stores the palette count in a single byte, so
	// 255 is the hard ceiling for a session that can ever finalize.
	if len(s.Palette) < 2 || len(s.Palette) > 255 {
		return fmt.Errorf("invalid palette: %d entries", len(s.Palette))
	}

	if s.MaxIterations < 2 {
		return fmt.Errorf("invalid max iterations: must be >= 2, got %d", s.MaxIterations)
	}

	if s.Iteration < 0 || s.Iteration > s.MaxIterations {
		return fmt.Errorf("invalid iteration: %d with max %d", s.Iteration, s.MaxIterations)
	}

	return nil
}

// Activity is one accepted paint mutation: the immutable append-only record
// of who painted what where, as of which claimed base revision. The ordered
// activity log is the sole source of truth for replay, contribution scoring,
// and the finalized artifact.
type Activity struct {
	Identity      string `json:"identity"`       // 20-byte hex address of the painter
	Revision      string `json:"revision"`       // claimed base revision the painter drew against
	PositionIndex int    `json:"position_index"` // flat cell index (row*columns + column)
	ColorIndex    int    `json:"color_index"`    // palette index written to the cell
	Iteration     int    `json:"iteration"`      // painting iteration during which the edit was accepted
	CreatedAt     int64  `json:"created_at"`     // Unix seconds at acceptance time
}

// Validate checks if the Activity has valid field values.
func (a *Activity) Validate() error {
	if !IsValidIdentity(a.Identity) {
		return fmt.Errorf("invalid identity: not a 20-byte hex address")
	}

	if !IsValidDigest(a.Revision) {
		return fmt.Errorf("invalid revision: not a 32-byte hex digest")
	}

	if a.PositionIndex < 0 {
		return fmt.Errorf("invalid position index: %d", a.PositionIndex)
	}

	if a.ColorIndex < 0 || a.ColorIndex > 255 {
		return fmt.Errorf("invalid color index: %d", a.ColorIndex)
	}

	return nil
}

// PromptEntry is one identity's prompt submission during the prompt phase.
// Re-submission replaces the previous entry for that identity.
type PromptEntry struct {
	Identity  string `json:"identity"`
	Text      string `json:"text"`
	Signature string `json:"signature"`
	CreatedAt int64  `json:"created_at"`
}

// PromptTally is an aggregated, case-folded prompt vote count.
type PromptTally struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// UserMetrics holds per-identity status used for initial paint balances and
// challenge gating. A user row exists only once the identity has cleared its
// anti-automation challenge.
type UserMetrics struct {
	Identity    string `json:"identity"`
	Verified    bool   `json:"verified"`    // email-verified account
	VIP         bool   `json:"vip"`         // elevated status
	Invitations int    `json:"invitations"` // confirmed referrals
	CreatedAt   int64  `json:"created_at"`
}

// Validate checks if the UserMetrics has valid field values.
func (u *UserMetrics) Validate() error {
	if !IsValidIdentity(u.Identity) {
		return fmt.Errorf("invalid identity: not a 20-byte hex address")
	}

	if u.Invitations < 0 {
		return fmt.Errorf("invalid invitation count: %d", u.Invitations)
	}

	return nil
}

// IsValidIdentity reports whether s is a 0x-prefixed 20-byte hex address.
func IsValidIdentity(s string) bool {
	return isHexBytes(s, 20)
}

// IsValidDigest reports whether s is a 0x-prefixed 32-byte hex digest.
func IsValidDigest(s string) bool {
	return isHexBytes(s, 32)
}

// IsValidSignature reports whether s is a 0x-prefixed 65-byte hex signature.
func IsValidSignature(s string) bool {
	return isHexBytes(s, 65)
}

func isHexBytes(s string, n int) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 2+2*n {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
