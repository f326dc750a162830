package session

import (
	"context"
	"fmt"
	"log"

	"github.com/easelhq/easel/internal/authsig"
	"github.com/easelhq/easel/internal/economy"
	"github.com/easelhq/easel/internal/ledger"
	"github.com/easelhq/easel/pkg/board"
)

// PaintRequest is one proposed paint mutation.
type PaintRequest struct {
	SessionHash   string
	Identity      string
	Revision      string
	Signature     string
	PositionIndex int
	ColorIndex    int
}

// PaintReceipt reports an accepted mutation back to the submitter.
type PaintReceipt struct {
	NewRevision string
	Cost        int
	BalanceLeft int
}

// SubmitPaint runs the full acceptance pipeline for a paint mutation:
// input validation, chain-signature verification, session lock, phase
// check, cost and budget check, revision-ledger conflict check, then the
// atomic commit and activity event. On any rejection no state changes.
func (e *Engine) SubmitPaint(ctx context.Context, req *PaintRequest) (*PaintReceipt, error) {
	if !board.IsValidIdentity(req.Identity) {
		return nil, fmt.Errorf("invalid identity %q: %w", req.Identity, board.ErrInvalidInput)
	}
	if !board.IsValidDigest(req.Revision) {
		return nil, fmt.Errorf("invalid revision %q: %w", req.Revision, board.ErrInvalidInput)
	}
	if err := e.checkGate(req.Identity); err != nil {
		return nil, err
	}

	// Verify the cumulative chain signature before taking the session
	// lock: the identity's own history only grows by its own accepted
	// edits, so a valid signature cannot be invalidated by other writers.
	history, err := e.boardClient.ActivityLog(ctx, req.SessionHash, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity history: %w", err)
	}
	actions := make([]authsig.Action, len(history))
	for i, a := range history {
		actions[i] = authsig.Action{
			ColorIndex:    a.ColorIndex,
			PositionIndex: a.PositionIndex,
			Revision:      a.Revision,
		}
	}
	proposed := authsig.Action{
		ColorIndex:    req.ColorIndex,
		PositionIndex: req.PositionIndex,
		Revision:      req.Revision,
	}
	if err := authsig.VerifyChain(req.Identity, actions, proposed, req.Signature); err != nil {
		return nil, err
	}

	st, err := e.lockSession(ctx, req.SessionHash)
	if err != nil {
		return nil, err
	}
	defer e.unlockSession(st)

	session, err := e.boardClient.GetSession(ctx, req.SessionHash)
	if err != nil {
		if board.IsNotFound(err) {
			e.forgetState(req.SessionHash)
		}
		return nil, err
	}
	if session.Phase() != board.PhasePainting {
		return nil, fmt.Errorf("session %s is in phase %s, not painting: %w",
			req.SessionHash, session.Phase(), board.ErrConflict)
	}
	if req.PositionIndex < 0 || req.PositionIndex >= session.Area() {
		return nil, fmt.Errorf("position %d out of bounds for %dx%d: %w",
			req.PositionIndex, session.Columns, session.Rows, board.ErrInvalidInput)
	}
	if req.ColorIndex < 0 || req.ColorIndex >= len(session.Palette) {
		return nil, fmt.Errorf("color %d out of palette: %w", req.ColorIndex, board.ErrInvalidInput)
	}

	balance, exists, err := e.boardClient.GetPaint(ctx, req.SessionHash, req.Identity)
	if err != nil {
		return nil, err
	}
	if !exists {
		balance, err = e.initialBalance(ctx, req.Identity)
		if err != nil {
			return nil, err
		}
	}

	canvas, err := e.canvases.Get(ctx, session.Revision)
	if err != nil {
		return nil, fmt.Errorf("canvas for revision %s: %w", session.Revision, err)
	}

	// History length counts prior accepted edits at this cell within the
	// current iteration; each one inflates the repaint cost.
	cellHistory, err := e.boardClient.PixelHistory(ctx, req.SessionHash, req.PositionIndex, session.Iteration)
	if err != nil {
		return nil, err
	}

	cost, err := economy.Cost(len(cellHistory),
		session.Palette[req.ColorIndex], session.Palette[canvas[req.PositionIndex]])
	if err != nil {
		return nil, err
	}
	if cost == 0 {
		return nil, fmt.Errorf("cell %d already holds color %d: %w",
			req.PositionIndex, req.ColorIndex, board.ErrNoOpEdit)
	}
	if cost > balance {
		return nil, fmt.Errorf("cost %d exceeds balance %d: %w", cost, balance, board.ErrInsufficientBudget)
	}

	// Seed an empty ring with the current revision so the base every
	// participant loaded stays claimable once the first edits land. The
	// sentinel position is never scanned: conflict checks only look at
	// entries after the claimed base.
	if st.ring.Len() == 0 {
		st.ring.Push(ledger.Entry{Revision: session.Revision, PositionIndex: -1})
	}

	if err := st.ring.Check(session.Revision, req.Revision, req.PositionIndex, session.Columns); err != nil {
		return nil, err
	}

	newCanvas := make([]byte, len(canvas))
	copy(newCanvas, canvas)
	newCanvas[req.PositionIndex] = byte(req.ColorIndex)

	newRevision, err := e.canvases.Put(ctx, newCanvas)
	if err != nil {
		return nil, fmt.Errorf("failed to store canvas: %w", err)
	}

	commit := &board.PaintCommit{
		Activity: &board.Activity{
			Identity:      req.Identity,
			Revision:      req.Revision,
			PositionIndex: req.PositionIndex,
			ColorIndex:    req.ColorIndex,
			Iteration:     session.Iteration,
			CreatedAt:     e.scheduler.Now(),
		},
		NewRevision: newRevision,
		NewBalance:  balance - cost,
		Signature:   req.Signature,
	}
	if err := e.boardClient.CommitPaint(ctx, req.SessionHash, commit); err != nil {
		return nil, err
	}

	if evicted, ok := st.ring.Push(ledger.Entry{Revision: newRevision, PositionIndex: req.PositionIndex}); ok {
		// The evicted revision can no longer be claimed, so its buffer is
		// unreachable. The initial canvas stays: finalization needs it.
		if evicted.Revision != session.Hash {
			if err := e.canvases.Delete(ctx, evicted.Revision); err != nil {
				log.Printf("[Engine] Failed to prune canvas %s: %v", evicted.Revision, err)
			}
		}
	}

	e.logEvent("paint_accepted", map[string]interface{}{
		"session":  req.SessionHash,
		"identity": req.Identity,
		"position": req.PositionIndex,
		"color":    req.ColorIndex,
		"cost":     cost,
		"revision": newRevision,
	})

	return &PaintReceipt{
		NewRevision: newRevision,
		Cost:        cost,
		BalanceLeft: balance - cost,
	}, nil
}

// Balance reports an identity's remaining paint in a session, resolving
// the starting balance for identities that have not painted yet.
func (e *Engine) Balance(ctx context.Context, sessionHash, identity string) (int, error) {
	if !board.IsValidIdentity(identity) {
		return 0, fmt.Errorf("invalid identity %q: %w", identity, board.ErrInvalidInput)
	}

	balance, exists, err := e.boardClient.GetPaint(ctx, sessionHash, identity)
	if err != nil {
		return 0, err
	}
	if exists {
		return balance, nil
	}
	return e.initialBalance(ctx, identity)
}

// Canvas returns the session's latest accepted canvas buffer.
func (e *Engine) Canvas(ctx context.Context, sessionHash string) ([]byte, error) {
	session, err := e.boardClient.GetSession(ctx, sessionHash)
	if err != nil {
		return nil, err
	}
	return e.canvases.Get(ctx, session.Revision)
}
