package seed

import (
	"encoding/json"
	"fmt"

	"github.com/greybox/eclipser/internal/byteval"
)

type byteValJSON struct {
	Kind string `json:"kind"`
	V    byte   `json:"v,omitempty"`
	Low  byte   `json:"low,omitempty"`
	High byte   `json:"high,omitempty"`
}

func byteValToJSON(b byteval.ByteVal) byteValJSON {
	switch b.Kind {
	case byteval.Interval:
		return byteValJSON{Kind: "interval", Low: b.Low, High: b.High}
	default:
		return byteValJSON{Kind: b.Kind.String(), V: b.V}
	}
}

func byteValFromJSON(j byteValJSON) (byteval.ByteVal, error) {
	switch j.Kind {
	case "Untouched":
		return byteval.NewUntouched(j.V), nil
	case "Undecided":
		return byteval.NewUndecided(j.V), nil
	case "Sampled":
		return byteval.NewSampled(j.V), nil
	case "Fixed":
		return byteval.NewFixed(j.V), nil
	case "interval", "Interval":
		return byteval.NewInterval(j.Low, j.High), nil
	default:
		return byteval.ByteVal{}, fmt.Errorf("seed: unknown ByteVal kind %q", j.Kind)
	}
}

// seedJSON mirrors the on-disk representation used under
// <out_dir>/queue. Field names match the reference's src["current_pos"]
// / src["cursor_dir"] keys (see spec §9 — the reference has a
// transcription bug assigning cursor_dir into current_pos twice; this
// implementation assigns each field exactly once).
type seedJSON struct {
	ByteVals   []byteValJSON `json:"byte_vals"`
	CurrentPos int           `json:"current_pos"`
	CursorDir  string        `json:"cursor_dir"`
	Source     sourceJSON    `json:"source"`
}

type sourceJSON struct {
	IsFile   bool   `json:"is_file"`
	FilePath string `json:"file_path,omitempty"`
}

func directionToJSON(d Direction) string {
	switch d {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return "Stay"
	}
}

func directionFromJSON(s string) Direction {
	switch s {
	case "Left":
		return Left
	case "Right":
		return Right
	default:
		return Stay
	}
}

// MarshalJSON implements json.Marshaler.
func (s Seed) MarshalJSON() ([]byte, error) {
	j := seedJSON{
		ByteVals:   make([]byteValJSON, len(s.ByteVals)),
		CurrentPos: s.CursorPos,
		CursorDir:  directionToJSON(s.CursorDir),
		Source: sourceJSON{
			IsFile:   s.Source.IsFile,
			FilePath: s.Source.FilePath,
		},
	}
	for i, bv := range s.ByteVals {
		j.ByteVals[i] = byteValToJSON(bv)
	}
	return json.Marshal(j)
}

// FromJSON parses the on-disk seed representation. Deliberately reads
// current_pos into CursorPos and cursor_dir into CursorDir, each
// exactly once — see spec §9 Open Questions: the reference assigns
// cursor_dir into current_pos a second time by mistake, which this
// implementation does not replicate.
func FromJSON(data []byte) (Seed, error) {
	var j seedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Seed{}, fmt.Errorf("seed: FromJSON: %w", err)
	}
	vals := make([]byteval.ByteVal, len(j.ByteVals))
	for i, bj := range j.ByteVals {
		bv, err := byteValFromJSON(bj)
		if err != nil {
			return Seed{}, err
		}
		vals[i] = bv
	}
	src := byteval.InputSource{}
	if j.Source.IsFile {
		src = byteval.FileInput(j.Source.FilePath)
	} else {
		src = byteval.StdInput()
	}
	return NewFromByteVals(vals, j.CurrentPos, directionFromJSON(j.CursorDir), src)
}
