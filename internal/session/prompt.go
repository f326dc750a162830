package session

import (
	"context"
	"fmt"
	"log"

	"github.com/easelhq/easel/internal/authsig"
	"github.com/easelhq/easel/internal/noise"
	"github.com/easelhq/easel/internal/promptfilter"
	"github.com/easelhq/easel/pkg/board"
)

// PromptResult reports the outcome of a prompt submission.
type PromptResult struct {
	// Prompt is the normalized text the submission counted toward.
	Prompt string
	// ConsensusReached is true when this submission locked in the prompt
	// and opened painting.
	ConsensusReached bool
	// Threshold is the number of matching submissions consensus requires.
	Threshold int
}

// SubmitPrompt processes one prompt submission during the prompt phase.
// Submissions are authorized by the identity's monotonic sequence
// signature over the normalized prompt; a resubmission replaces the
// identity's previous entry. Reaching the consensus threshold fixes the
// prompt, advances the session to its first painting iteration, arms the
// iteration deadline, and seeds the next prompt session.
func (e *Engine) SubmitPrompt(ctx context.Context, sessionHash, identity, text, signature string) (*PromptResult, error) {
	if !board.IsValidIdentity(identity) {
		return nil, fmt.Errorf("invalid identity %q: %w", identity, board.ErrInvalidInput)
	}
	if err := e.checkGate(identity); err != nil {
		return nil, err
	}

	normalized, err := promptfilter.Validate(text, *e.cfg.Prompt.MaxWords, e.wordFilter)
	if err != nil {
		return nil, err
	}

	sequence, err := e.boardClient.GetSequence(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := authsig.VerifySequence(identity, int(sequence), []byte(normalized), signature); err != nil {
		return nil, err
	}

	st, err := e.lockSession(ctx, sessionHash)
	if err != nil {
		return nil, err
	}
	defer e.unlockSession(st)

	session, err := e.boardClient.GetSession(ctx, sessionHash)
	if err != nil {
		if board.IsNotFound(err) {
			e.forgetState(sessionHash)
		}
		return nil, err
	}
	if session.Phase() != board.PhasePrompt {
		return nil, fmt.Errorf("session %s is in phase %s, not prompt: %w",
			sessionHash, session.Phase(), board.ErrConflict)
	}

	// The signature spent its sequence slot whether or not consensus
	// follows; incrementing here keeps the next submission unreplayable.
	if err := e.boardClient.IncrSequence(ctx, identity); err != nil {
		return nil, err
	}

	threshold := e.consensusThreshold(session.Area())
	result := &PromptResult{Prompt: normalized, Threshold: threshold}

	matches, err := e.boardClient.PromptMatchCount(ctx, sessionHash, normalized)
	if err != nil {
		return nil, err
	}

	// The identity's own previous entry no longer counts; its submission
	// is being replaced by this one.
	previous, err := e.boardClient.PromptByIdentity(ctx, sessionHash, identity)
	if err != nil && !board.IsNotFound(err) {
		return nil, err
	}
	if promptfilter.Normalize(previous) == normalized {
		matches--
	}

	if matches+1 < threshold {
		entry := &board.PromptEntry{
			Identity:  identity,
			Text:      normalized,
			Signature: signature,
			CreatedAt: e.scheduler.Now(),
		}
		if err := e.boardClient.UpsertPrompt(ctx, sessionHash, entry); err != nil {
			return nil, err
		}
		return result, nil
	}

	// Consensus: fix the prompt, open painting, clean up the entries.
	now := e.scheduler.Now()
	if err := e.boardClient.SetPrompt(ctx, sessionHash, normalized, true, now); err != nil {
		return nil, err
	}
	if err := e.boardClient.DeletePrompts(ctx, sessionHash); err != nil {
		return nil, err
	}

	e.armIteration(sessionHash, now+int64(*e.cfg.Session.IterationLength))

	e.logEvent("consensus_reached", map[string]interface{}{
		"session":   sessionHash,
		"prompt":    normalized,
		"threshold": threshold,
	})

	// Keep exactly one session in the prompt phase: seed the successor,
	// sized by how fast this prompt converged.
	if err := e.seedSuccessor(ctx, session, now); err != nil {
		log.Printf("[Engine] Failed to seed successor session: %v", err)
	}

	result.ConsensusReached = true
	return result, nil
}

// seedSuccessor creates the next prompt session after consensus, unless
// one already exists. Quick consensus grows the canvas a size class; slow
// consensus shrinks it.
func (e *Engine) seedSuccessor(ctx context.Context, finished *board.Session, now int64) error {
	pending, err := e.boardClient.ListPromptSessions(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return nil
	}

	duration := now - finished.IterationStartedAt
	size := noise.SizeClass(finished.Columns, finished.Rows)
	iterationLength := int64(*e.cfg.Session.IterationLength)
	switch {
	case duration < iterationLength:
		size++
	case duration > 2*iterationLength:
		size--
	}

	_, err = e.SeedSession(ctx, size)
	return err
}

// SeedSession creates a fresh prompt-phase session: new dimensions from
// the size class, a generated palette, and a noise canvas whose digest
// becomes the session identifier.
func (e *Engine) SeedSession(ctx context.Context, sizeClass int) (*board.Session, error) {
	dims := noise.PickDimensions(e.rng, sizeClass)

	palette, err := noise.GeneratePalette(e.rng, *e.cfg.Session.PaletteSize)
	if err != nil {
		return nil, err
	}

	algorithm := noise.Algorithm(e.rng.Intn(2))
	canvas, err := noise.Generate(e.rng, algorithm, dims.Columns, dims.Rows, palette)
	if err != nil {
		return nil, err
	}

	hash, err := e.canvases.Put(ctx, canvas)
	if err != nil {
		return nil, fmt.Errorf("failed to store initial canvas: %w", err)
	}

	now := e.scheduler.Now()
	session := &board.Session{
		Hash:               hash,
		Type:               board.SessionTypeFree,
		Rows:               dims.Rows,
		Columns:            dims.Columns,
		Palette:            palette,
		Revision:           hash,
		Iteration:          0,
		MaxIterations:      *e.cfg.Session.IterationCount,
		IterationStartedAt: now,
		CreatedAt:          now,
	}
	if err := e.boardClient.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	e.logEvent("session_seeded", map[string]interface{}{
		"session": hash,
		"columns": dims.Columns,
		"rows":    dims.Rows,
		"palette": len(palette),
	})
	return session, nil
}

// PromptTallies lists a session's grouped prompt submissions by vote
// count.
func (e *Engine) PromptTallies(ctx context.Context, sessionHash string) ([]board.PromptTally, error) {
	return e.boardClient.PromptTallies(ctx, sessionHash)
}
