// Package artifact implements the finalization artifact: a self-contained
// binary record of a finished session sufficient to replay it from the
// initial canvas to the final revision without any external state. The
// layout is fixed-offset big-endian so independent implementations can
// decode it byte-for-byte.
package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/easelhq/easel/internal/canvasstore"
	"github.com/easelhq/easel/internal/economy"
	"github.com/easelhq/easel/pkg/board"
)

// Magic is the artifact file signature.
const Magic = "EASL"

// Version is the current artifact layout version.
const Version = 1

// Signature pairs an identity with its final cumulative chain signature.
type Signature struct {
	Identity  string
	Signature string
}

// Artifact is the decoded finalization record.
type Artifact struct {
	Version       int
	SessionDigest string
	FinalRevision string
	Columns       int
	Rows          int
	CreatedAt     int64
	Palette       []string
	InitialCanvas []byte
	Signatures    []Signature
	Activity      []board.Activity
}

// Validate checks internal consistency before encoding.
func (a *Artifact) Validate() error {
	if !board.IsValidDigest(a.SessionDigest) {
		return fmt.Errorf("invalid session digest %q", a.SessionDigest)
	}
	if !board.IsValidDigest(a.FinalRevision) {
		return fmt.Errorf("invalid final revision %q", a.FinalRevision)
	}
	if a.Columns <= 0 || a.Columns > 65535 || a.Rows <= 0 || a.Rows > 65535 {
		return fmt.Errorf("invalid dimensions %dx%d", a.Columns, a.Rows)
	}
	if len(a.Palette) < 2 || len(a.Palette) > 255 {
		return fmt.Errorf("palette size %d out of range [2,255]", len(a.Palette))
	}
	if len(a.InitialCanvas) != a.Columns*a.Rows {
		return fmt.Errorf("canvas length %d does not match %dx%d",
			len(a.InitialCanvas), a.Columns, a.Rows)
	}
	for _, s := range a.Signatures {
		if !board.IsValidIdentity(s.Identity) {
			return fmt.Errorf("invalid signature identity %q", s.Identity)
		}
		if !board.IsValidSignature(s.Signature) {
			return fmt.Errorf("invalid signature for %s", s.Identity)
		}
	}
	for i, act := range a.Activity {
		if err := act.Validate(); err != nil {
			return fmt.Errorf("activity %d: %w", i, err)
		}
		if act.PositionIndex >= a.Columns*a.Rows {
			return fmt.Errorf("activity %d: position %d out of bounds", i, act.PositionIndex)
		}
		if act.ColorIndex >= len(a.Palette) {
			return fmt.Errorf("activity %d: color %d out of palette", i, act.ColorIndex)
		}
	}
	return nil
}

// Encode serializes the artifact. Layout, all integers big-endian:
//
//	magic "EASL"                      4 bytes
//	version                           uint8
//	session digest                    32 bytes
//	final revision                    32 bytes
//	columns, rows                     uint16 each
//	created at                        uint64
//	palette count                     uint8, then 3 RGB bytes per color
//	canvas length                     uint32, then canvas bytes
//	signature count                   uint16, then 20+65 bytes per entry
//	activity count                    uint32, then 66 bytes per record
//	  (identity 20, revision 32, position uint32, color uint8,
//	   iteration uint8, timestamp uint64)
func Encode(a *Artifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.WriteByte(Version)
	buf.Write(common.HexToHash(a.SessionDigest).Bytes())
	buf.Write(common.HexToHash(a.FinalRevision).Bytes())

	writeUint16(&buf, uint16(a.Columns))
	writeUint16(&buf, uint16(a.Rows))
	writeUint64(&buf, uint64(a.CreatedAt))

	buf.WriteByte(byte(len(a.Palette)))
	for _, hexColor := range a.Palette {
		c, err := colorful.Hex(hexColor)
		if err != nil {
			return nil, fmt.Errorf("invalid palette color %q: %w", hexColor, err)
		}
		r, g, b := c.RGB255()
		buf.Write([]byte{r, g, b})
	}

	writeUint32(&buf, uint32(len(a.InitialCanvas)))
	buf.Write(a.InitialCanvas)

	writeUint16(&buf, uint16(len(a.Signatures)))
	for _, s := range a.Signatures {
		buf.Write(common.HexToAddress(s.Identity).Bytes())
		buf.Write(common.FromHex(s.Signature))
	}

	writeUint32(&buf, uint32(len(a.Activity)))
	for _, act := range a.Activity {
		buf.Write(common.HexToAddress(act.Identity).Bytes())
		buf.Write(common.HexToHash(act.Revision).Bytes())
		writeUint32(&buf, uint32(act.PositionIndex))
		buf.WriteByte(byte(act.ColorIndex))
		buf.WriteByte(byte(act.Iteration))
		writeUint64(&buf, uint64(act.CreatedAt))
	}

	return buf.Bytes(), nil
}

// Decode parses an encoded artifact, rejecting truncated or malformed
// input.
func Decode(data []byte) (*Artifact, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != Magic {
		return nil, fmt.Errorf("bad artifact magic: %w", board.ErrInvalidInput)
	}

	version, err := r.ReadByte()
	if err != nil {
		return nil, truncated(err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported artifact version %d: %w", version, board.ErrInvalidInput)
	}

	a := &Artifact{Version: int(version)}

	sessionDigest := make([]byte, 32)
	if _, err := io.ReadFull(r, sessionDigest); err != nil {
		return nil, truncated(err)
	}
	a.SessionDigest = "0x" + hex.EncodeToString(sessionDigest)

	finalRevision := make([]byte, 32)
	if _, err := io.ReadFull(r, finalRevision); err != nil {
		return nil, truncated(err)
	}
	a.FinalRevision = "0x" + hex.EncodeToString(finalRevision)

	columns, err := readUint16(r)
	if err != nil {
		return nil, truncated(err)
	}
	rows, err := readUint16(r)
	if err != nil {
		return nil, truncated(err)
	}
	a.Columns, a.Rows = int(columns), int(rows)

	createdAt, err := readUint64(r)
	if err != nil {
		return nil, truncated(err)
	}
	a.CreatedAt = int64(createdAt)

	paletteCount, err := r.ReadByte()
	if err != nil {
		return nil, truncated(err)
	}
	a.Palette = make([]string, paletteCount)
	for i := range a.Palette {
		rgb := make([]byte, 3)
		if _, err := io.ReadFull(r, rgb); err != nil {
			return nil, truncated(err)
		}
		a.Palette[i] = fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
	}

	canvasLen, err := readUint32(r)
	if err != nil {
		return nil, truncated(err)
	}
	if int(canvasLen) != a.Columns*a.Rows {
		return nil, fmt.Errorf("canvas length %d does not match %dx%d: %w",
			canvasLen, a.Columns, a.Rows, board.ErrInvalidInput)
	}
	a.InitialCanvas = make([]byte, canvasLen)
	if _, err := io.ReadFull(r, a.InitialCanvas); err != nil {
		return nil, truncated(err)
	}

	sigCount, err := readUint16(r)
	if err != nil {
		return nil, truncated(err)
	}
	a.Signatures = make([]Signature, sigCount)
	for i := range a.Signatures {
		entry := make([]byte, 20+65)
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, truncated(err)
		}
		a.Signatures[i] = Signature{
			Identity:  "0x" + hex.EncodeToString(entry[:20]),
			Signature: "0x" + hex.EncodeToString(entry[20:]),
		}
	}

	activityCount, err := readUint32(r)
	if err != nil {
		return nil, truncated(err)
	}
	a.Activity = make([]board.Activity, activityCount)
	for i := range a.Activity {
		record := make([]byte, 66)
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, truncated(err)
		}
		a.Activity[i] = board.Activity{
			Identity:      "0x" + hex.EncodeToString(record[:20]),
			Revision:      "0x" + hex.EncodeToString(record[20:52]),
			PositionIndex: int(binary.BigEndian.Uint32(record[52:56])),
			ColorIndex:    int(record[56]),
			Iteration:     int(record[57]),
			CreatedAt:     int64(binary.BigEndian.Uint64(record[58:66])),
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after artifact: %w", r.Len(), board.ErrInvalidInput)
	}
	return a, nil
}

// Replay applies the artifact's activity log to its initial canvas and
// verifies the result digests to the recorded final revision. Returns the
// replayed canvas.
func Replay(a *Artifact) ([]byte, error) {
	canvas := make([]byte, len(a.InitialCanvas))
	copy(canvas, a.InitialCanvas)

	area := a.Columns * a.Rows
	for i, act := range a.Activity {
		if act.PositionIndex < 0 || act.PositionIndex >= area {
			return nil, fmt.Errorf("activity %d: position %d out of bounds: %w",
				i, act.PositionIndex, board.ErrInvalidInput)
		}
		if act.ColorIndex < 0 || act.ColorIndex >= len(a.Palette) {
			return nil, fmt.Errorf("activity %d: color %d out of palette: %w",
				i, act.ColorIndex, board.ErrInvalidInput)
		}
		canvas[act.PositionIndex] = byte(act.ColorIndex)
	}

	if digest := canvasstore.Digest(canvas); digest != a.FinalRevision {
		return nil, fmt.Errorf("replay digest %s does not match final revision %s: %w",
			digest, a.FinalRevision, board.ErrInternal)
	}
	return canvas, nil
}

// Contribution is one identity's share of a finished session.
type Contribution struct {
	Identity string
	// Score is the raw contribution: for each of the identity's edits,
	// closeness of the edit's color to the final color at that cell,
	// weighted by what the edit cost.
	Score float64
	// Payout is the settled value, floor(Score/100).
	Payout int
}

// Contributions scores every contributing identity. An edit's weight is the
// paint it cost at the time it landed; its sign tracks whether the final
// canvas kept something near that color (survivors score positive, edits
// painted far from the final color score negative). Results are sorted by
// descending score, ties broken by identity for determinism.
func Contributions(a *Artifact) ([]Contribution, error) {
	final, err := Replay(a)
	if err != nil {
		return nil, err
	}

	running := make([]byte, len(a.InitialCanvas))
	copy(running, a.InitialCanvas)
	historyLengths := make([]int, len(running))

	scores := make(map[string]float64)
	for _, act := range a.Activity {
		closeness, err := economy.ColorDistance(
			a.Palette[act.ColorIndex], a.Palette[final[act.PositionIndex]])
		if err != nil {
			return nil, err
		}

		cost, err := economy.Cost(historyLengths[act.PositionIndex],
			a.Palette[act.ColorIndex], a.Palette[running[act.PositionIndex]])
		if err != nil {
			return nil, err
		}

		scores[act.Identity] += (50 - closeness) * float64(cost) / 50

		running[act.PositionIndex] = byte(act.ColorIndex)
		historyLengths[act.PositionIndex]++
	}

	out := make([]Contribution, 0, len(scores))
	for identity, score := range scores {
		payout := int(score / 100)
		if payout < 0 {
			payout = 0
		}
		out = append(out, Contribution{Identity: identity, Score: score, Payout: payout})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Identity < out[j].Identity
	})
	return out, nil
}

func truncated(err error) error {
	return fmt.Errorf("truncated artifact: %v: %w", err, board.ErrInvalidInput)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint16(r *bytes.Reader) (uint16, error) {
	b := make([]byte, 2)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}
