package session

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/easelhq/easel/internal/artifact"
	"github.com/easelhq/easel/internal/noise"
	"github.com/easelhq/easel/internal/settle"
	"github.com/easelhq/easel/pkg/board"
)

// Run starts the engine and blocks until the context is cancelled. On
// startup it recovers scheduler deadlines for every active painting
// session and guarantees a prompt-phase session exists.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	if err := e.healthServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	defer e.healthServer.Shutdown(context.Background())

	log.Printf("[Engine] Starting for instance '%s'", e.instanceName)

	if err := e.recover(ctx); err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}

	<-ctx.Done()
	log.Printf("[Engine] Shutting down...")
	return nil
}

// recover re-arms iteration deadlines for painting sessions and seeds the
// initial prompt session if none exists.
func (e *Engine) recover(ctx context.Context) error {
	active, err := e.boardClient.ListActive(ctx)
	if err != nil {
		return err
	}

	promptSessions := 0
	for _, s := range active {
		switch s.Phase() {
		case board.PhasePrompt:
			promptSessions++
		case board.PhasePainting:
			e.armIteration(s.Hash, s.IterationStartedAt+int64(*e.cfg.Session.IterationLength))
			e.logEvent("session_recovered", map[string]interface{}{
				"session":   s.Hash,
				"iteration": s.Iteration,
			})
		}
	}

	if promptSessions == 0 {
		if _, err := e.SeedSession(ctx, *e.cfg.Session.InitialSizeClass); err != nil {
			return err
		}
	}
	return nil
}

// armIteration schedules an iteration-deadline callback. The callback runs
// on the engine's run context so pending deadlines die with the engine.
func (e *Engine) armIteration(sessionHash string, at int64) {
	e.mu.Lock()
	ctx := e.runCtx
	e.mu.Unlock()

	deadline := e.scheduler.At(at)
	go func() {
		select {
		case <-ctx.Done():
		case <-deadline:
			if err := e.AdvanceIteration(ctx, sessionHash); err != nil {
				log.Printf("[Engine] Iteration advance for %s failed: %v", sessionHash, err)
			}
		}
	}()
}

// AdvanceIteration moves a painting session to its next iteration, or
// finalizes it when the last iteration's deadline passes. Calling it on a
// session that is not painting is a no-op, which makes stale scheduler
// callbacks harmless.
func (e *Engine) AdvanceIteration(ctx context.Context, sessionHash string) error {
	st, err := e.lockSession(ctx, sessionHash)
	if err != nil {
		return err
	}
	defer e.unlockSession(st)

	session, err := e.boardClient.GetSession(ctx, sessionHash)
	if err != nil {
		if board.IsNotFound(err) {
			e.forgetState(sessionHash)
		}
		return err
	}
	if session.Phase() != board.PhasePainting {
		return nil
	}

	if session.Iteration == session.MaxIterations-1 {
		return e.finalize(ctx, st, session)
	}

	now := e.scheduler.Now()
	if err := e.boardClient.AdvanceIteration(ctx, sessionHash, session.Iteration+1, now); err != nil {
		return err
	}
	if err := e.boardClient.ReplenishPaint(ctx, sessionHash, e.replenish.Replenish); err != nil {
		return err
	}

	e.armIteration(sessionHash, now+int64(*e.cfg.Session.IterationLength))

	e.logEvent("iteration_advanced", map[string]interface{}{
		"session":   sessionHash,
		"iteration": session.Iteration + 1,
	})
	return nil
}

// finalize transitions a session to its terminal phase exactly once:
// encode the artifact, store it content-addressed, settle contributions,
// and prune every retained non-final canvas buffer. Caller holds the
// session lock, and the phase check in AdvanceIteration guards re-entry.
func (e *Engine) finalize(ctx context.Context, st *sessionState, session *board.Session) error {
	initial, err := e.canvases.Get(ctx, session.Hash)
	if err != nil {
		return fmt.Errorf("initial canvas: %w", err)
	}
	activity, err := e.boardClient.ActivityLog(ctx, session.Hash, "")
	if err != nil {
		return err
	}
	signatures, err := e.boardClient.Signatures(ctx, session.Hash)
	if err != nil {
		return err
	}

	a := &artifact.Artifact{
		Version:       artifact.Version,
		SessionDigest: session.Hash,
		FinalRevision: session.Revision,
		Columns:       session.Columns,
		Rows:          session.Rows,
		CreatedAt:     session.CreatedAt,
		Palette:       session.Palette,
		InitialCanvas: initial,
		Activity:      activity,
	}
	for identity, signature := range signatures {
		a.Signatures = append(a.Signatures, artifact.Signature{
			Identity:  identity,
			Signature: signature,
		})
	}
	// Deterministic artifact bytes for a given session state.
	sort.Slice(a.Signatures, func(i, j int) bool {
		return a.Signatures[i].Identity < a.Signatures[j].Identity
	})

	encoded, err := artifact.Encode(a)
	if err != nil {
		return fmt.Errorf("artifact encoding: %w", err)
	}
	artifactDigest, err := e.canvases.Put(ctx, encoded)
	if err != nil {
		return fmt.Errorf("artifact storage: %w", err)
	}

	contributions, err := artifact.Contributions(a)
	if err != nil {
		return fmt.Errorf("contribution scoring: %w", err)
	}

	now := e.scheduler.Now()
	total := 0
	payouts := make([]settle.Payout, 0, len(contributions))
	for _, c := range contributions {
		total += c.Payout
		payouts = append(payouts, settle.Payout{Identity: c.Identity, Amount: c.Payout})
	}
	if e.settlement != nil {
		if _, err := e.settlement.Submit(ctx, artifactDigest, total); err != nil {
			return fmt.Errorf("settlement submission: %w", err)
		}
		if _, err := e.settlement.RecordPayouts(ctx, artifactDigest, payouts, now); err != nil {
			return fmt.Errorf("payout recording: %w", err)
		}
	}

	// Terminal transition; the session accepts nothing from here on.
	if err := e.boardClient.AdvanceIteration(ctx, session.Hash, session.MaxIterations, now); err != nil {
		return err
	}

	// Every retained intermediate buffer is unreachable now; only the
	// initial canvas, the final revision, and the artifact remain.
	for _, entry := range st.ring.Entries() {
		if entry.Revision == session.Revision || entry.Revision == session.Hash {
			continue
		}
		if err := e.canvases.Delete(ctx, entry.Revision); err != nil {
			log.Printf("[Engine] Failed to prune canvas %s: %v", entry.Revision, err)
		}
	}

	e.mu.Lock()
	delete(e.sessions, session.Hash)
	e.mu.Unlock()

	e.logEvent("session_finalized", map[string]interface{}{
		"session":      session.Hash,
		"artifact":     artifactDigest,
		"contributors": len(contributions),
		"total_payout": total,
	})

	// Keep the pipeline fed: if no session is taking prompts, seed one a
	// couple of size classes down from the finished canvas.
	pending, err := e.boardClient.ListPromptSessions(ctx)
	if err == nil && len(pending) == 0 {
		size := noise.SizeClass(session.Columns, session.Rows) - 2
		if _, err := e.SeedSession(ctx, size); err != nil {
			log.Printf("[Engine] Failed to seed follow-up session: %v", err)
		}
	}

	return nil
}
