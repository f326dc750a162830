package board

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testIdentity = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
	testDigest   = "0x5dd22d61f4d62b023b26726f7ffd4b0ee1b2e19a9d6a7b9dff80b06d0a566d4a"
	testDigest2  = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func validTestSession() *Session {
	return &Session{
		Hash:               testDigest,
		Type:               SessionTypeFree,
		Rows:               16,
		Columns:            16,
		Palette:            []string{"#000000", "#ffffff", "#ff0000", "#00ff00"},
		Revision:           testDigest,
		Iteration:          0,
		MaxIterations:      5,
		IterationStartedAt: 1700000000,
		CreatedAt:          1700000000,
	}
}

func TestSessionValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(s *Session)
		expectError   bool
		errorContains string
	}{
		{
			name:   "valid session",
			mutate: func(s *Session) {},
		},
		{
			name:          "bad hash",
			mutate:        func(s *Session) { s.Hash = "not-a-digest" },
			expectError:   true,
			errorContains: "invalid session hash",
		},
		{
			name:          "bad revision",
			mutate:        func(s *Session) { s.Revision = "0x1234" },
			expectError:   true,
			errorContains: "invalid revision",
		},
		{
			name:          "zero dimensions",
			mutate:        func(s *Session) { s.Rows = 0 },
			expectError:   true,
			errorContains: "invalid dimensions",
		},
		{
			name:          "single color palette",
			mutate:        func(s *Session) { s.Palette = []string{"#000000"} },
			expectError:   true,
			errorContains: "invalid palette",
		},
		{
			name: "palette too large to encode in one byte",
			mutate: func(s *Session) {
				s.Palette = make([]string, 256)
				for i := range s.Palette {
					s.Palette[i] = "#000000"
				}
			},
			expectError:   true,
			errorContains: "invalid palette",
		},
		{
			name: "palette at the one-byte ceiling",
			mutate: func(s *Session) {
				s.Palette = make([]string, 255)
				for i := range s.Palette {
					s.Palette[i] = "#000000"
				}
			},
		},
		{
			name:          "iteration past max",
			mutate:        func(s *Session) { s.Iteration = 6 },
			expectError:   true,
			errorContains: "invalid iteration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validTestSession()
			tt.mutate(s)
			err := s.Validate()
			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionPhase(t *testing.T) {
	s := validTestSession()

	s.Iteration = 0
	assert.Equal(t, PhasePrompt, s.Phase())

	for i := 1; i < s.MaxIterations; i++ {
		s.Iteration = i
		assert.Equal(t, PhasePainting, s.Phase(), "iteration %d", i)
	}

	s.Iteration = s.MaxIterations
	assert.Equal(t, PhaseFinalized, s.Phase())
}

func TestActivityValidate(t *testing.T) {
	valid := Activity{
		Identity:      testIdentity,
		Revision:      testDigest,
		PositionIndex: 42,
		ColorIndex:    3,
		Iteration:     1,
		CreatedAt:     1700000000,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Identity = "alice"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.PositionIndex = -1
	assert.Error(t, bad.Validate())

	bad = valid
	bad.ColorIndex = 256
	assert.Error(t, bad.Validate())
}

func TestIsValidIdentity(t *testing.T) {
	assert.True(t, IsValidIdentity(testIdentity))
	assert.False(t, IsValidIdentity(testDigest))           // wrong length
	assert.False(t, IsValidIdentity("7e5f4552091a69125d5dfcb7b8c2659029395bdf")) // missing prefix
	assert.False(t, IsValidIdentity("0xzz5f4552091a69125d5dfcb7b8c2659029395bdf"))
}

func TestIsValidDigest(t *testing.T) {
	assert.True(t, IsValidDigest(testDigest))
	assert.False(t, IsValidDigest(testIdentity))
	assert.False(t, IsValidDigest(""))
}

func TestIsValidSignature(t *testing.T) {
	sig := "0x" + strings.Repeat("ab", 65)
	assert.True(t, IsValidSignature(sig))
	assert.False(t, IsValidSignature(sig+"00"))
}
