package main

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"jordanella.com/slash-go/internal/macro"
)

// parseTapLine reads one "x y" (or "x,y") line. ok is false for blank
// lines and # comments.
func parseTapLine(line string) (x, y float64, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0, 0, false, nil
	}
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' || r == ',' })
	if len(fields) != 2 {
		return 0, 0, false, fmt.Errorf("expected \"x y\", got %q", line)
	}
	if x, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return 0, 0, false, fmt.Errorf("bad x in %q: %w", line, err)
	}
	if y, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return 0, 0, false, fmt.Errorf("bad y in %q: %w", line, err)
	}
	return x, y, true, nil
}

// parseRegion reads "x,y,width,height"
func parseRegion(s string) (macro.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return macro.Region{}, fmt.Errorf("region %q must be x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return macro.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := macro.Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if !r.Valid() {
		return macro.Region{}, fmt.Errorf("region %q has no area", s)
	}
	return r, nil
}

// optionalRect parses a region flag; empty means the whole image
func optionalRect(s string) (image.Rectangle, error) {
	if s == "" {
		return image.Rectangle{}, nil
	}
	r, err := parseRegion(s)
	if err != nil {
		return image.Rectangle{}, err
	}
	return r.Rect(), nil
}

// isMacroFile reports whether arg names a macro file rather than a stored macro
func isMacroFile(arg string) bool {
	lower := strings.ToLower(arg)
	return strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
