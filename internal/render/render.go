// Package render draws grid snapshots for terminals and machine consumers.
package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/egress/internal/geom"
	"github.com/nvandessel/egress/internal/grid"
)

// Format specifies the output format for a snapshot.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Glyphs used by the text format.
const (
	glyphFree     = "."
	glyphObstacle = "#"
	glyphExit     = "E"
)

// Render produces s in the requested format.
func Render(s grid.Snapshot, format Format) (string, error) {
	switch format {
	case FormatText, "":
		return Text(s), nil
	case FormatJSON:
		return JSON(s)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// Text draws the grid top row first, so y grows upward like the model.
// Agents show their id; every column is padded to the widest id.
func Text(s grid.Snapshot) string {
	width := 1
	for _, v := range s.Cells {
		if v > 0 {
			width = max(width, len(strconv.Itoa(v)))
		}
	}

	var b strings.Builder
	for y := s.YSize - 1; y >= 0; y-- {
		for x := 0; x < s.XSize; x++ {
			if x > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(pad(cell(s, geom.Pt(x, y)), width))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "exited: %d\n", s.Exited)
	return b.String()
}

func cell(s grid.Snapshot, p geom.Point) string {
	v := s.At(p)
	switch {
	case v == grid.Obstacle:
		return glyphObstacle
	case v > 0:
		return strconv.Itoa(v)
	case s.IsExit(p):
		return glyphExit
	default:
		return glyphFree
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// JSON encodes s with its cells as rows, top row first.
func JSON(s grid.Snapshot) (string, error) {
	rows := make([][]int, 0, s.YSize)
	for y := s.YSize - 1; y >= 0; y-- {
		rows = append(rows, s.Cells[y*s.XSize:(y+1)*s.XSize])
	}
	out := struct {
		XSize  int          `json:"x_size"`
		YSize  int          `json:"y_size"`
		Rows   [][]int      `json:"rows"`
		Exits  []geom.Point `json:"exits"`
		Exited int          `json:"exited"`
	}{s.XSize, s.YSize, rows, s.Exits, s.Exited}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}
