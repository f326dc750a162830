package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// the palette are JSON-encoded into single hash fields. This provides a
// balance between queryability (individual fields) and flexibility.

// SessionToHash converts a Session struct to a Redis hash format.
// The palette array is JSON-encoded.
func SessionToHash(s *Session) (map[string]interface{}, error) {
	paletteJSON, err := json.Marshal(s.Palette)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal palette: %w", err)
	}

	hash := map[string]interface{}{
		"hash":                 s.Hash,
		"type":                 int(s.Type),
		"rows":                 s.Rows,
		"columns":              s.Columns,
		"palette":              string(paletteJSON),
		"revision":             s.Revision,
		"prompt":               s.Prompt,
		"iteration":            s.Iteration,
		"max_iterations":       s.MaxIterations,
		"iteration_started_at": s.IterationStartedAt,
		"created_at":           s.CreatedAt,
	}

	return hash, nil
}

// HashToSession converts a Redis hash to a Session struct.
// JSON fields are decoded back to Go types.
func HashToSession(hash map[string]string) (*Session, error) {
	rows, err := strconv.Atoi(hash["rows"])
	if err != nil {
		return nil, fmt.Errorf("invalid rows field: %w", err)
	}

	columns, err := strconv.Atoi(hash["columns"])
	if err != nil {
		return nil, fmt.Errorf("invalid columns field: %w", err)
	}

	iteration, err := strconv.Atoi(hash["iteration"])
	if err != nil {
		return nil, fmt.Errorf("invalid iteration field: %w", err)
	}

	maxIterations, err := strconv.Atoi(hash["max_iterations"])
	if err != nil {
		return nil, fmt.Errorf("invalid max_iterations field: %w", err)
	}

	var palette []string
	if paletteJSON := hash["palette"]; paletteJSON != "" {
		if err := json.Unmarshal([]byte(paletteJSON), &palette); err != nil {
			return nil, fmt.Errorf("failed to unmarshal palette: %w", err)
		}
	}

	sessionType, _ := strconv.Atoi(hash["type"])
	iterationStartedAt, _ := strconv.ParseInt(hash["iteration_started_at"], 10, 64)
	createdAt, _ := strconv.ParseInt(hash["created_at"], 10, 64)

	session := &Session{
		Hash:               hash["hash"],
		Type:               SessionType(sessionType),
		Rows:               rows,
		Columns:            columns,
		Palette:            palette,
		Revision:           hash["revision"],
		Prompt:             hash["prompt"],
		Iteration:          iteration,
		MaxIterations:      maxIterations,
		IterationStartedAt: iterationStartedAt,
		CreatedAt:          createdAt,
	}

	return session, nil
}

// UserToHash converts a UserMetrics struct to a Redis hash format.
func UserToHash(u *UserMetrics) map[string]interface{} {
	return map[string]interface{}{
		"identity":    u.Identity,
		"verified":    strconv.FormatBool(u.Verified),
		"vip":         strconv.FormatBool(u.VIP),
		"invitations": u.Invitations,
		"created_at":  u.CreatedAt,
	}
}

// HashToUser converts a Redis hash to a UserMetrics struct.
func HashToUser(hash map[string]string) (*UserMetrics, error) {
	invitations := 0
	if raw := hash["invitations"]; raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid invitations field: %w", err)
		}
		invitations = v
	}

	verified, _ := strconv.ParseBool(hash["verified"])
	vip, _ := strconv.ParseBool(hash["vip"])
	createdAt, _ := strconv.ParseInt(hash["created_at"], 10, 64)

	return &UserMetrics{
		Identity:    hash["identity"],
		Verified:    verified,
		VIP:         vip,
		Invitations: invitations,
		CreatedAt:   createdAt,
	}, nil
}
