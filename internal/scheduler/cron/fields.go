package cron

import (
	"strconv"
	"strings"
)

// yearSet is the set of years the optional seventh cron field matches.
// It is a map rather than a bitmask: year values (1970-2099) exceed the
// shift width a uint64 bitmask could address, so a bitmask silently drops
// every year ("1 << bitIndex" is 0 once bitIndex >= 64 in Go).
type yearSet map[int]bool

func (y yearSet) has(v int) bool { return y[v] }

func fullYearSet() yearSet {
	full := make(yearSet, maxYear-minYear+1)
	for v := minYear; v <= maxYear; v++ {
		full[v] = true
	}
	return full
}

// parseYearField parses the comma-separated list of literals/ranges/steps
// that make up the year field, the one piece of Quartz cron syntax with no
// equivalent parser option in the backing cron library.
func parseYearField(expr, spec string) (yearSet, error) {
	if spec == "*" {
		return fullYearSet(), nil
	}
	out := yearSet{}
	for _, tok := range strings.Split(spec, ",") {
		lo, hi, step, err := parseRange(expr, "year", 6, tok, minYear, maxYear, nil)
		if err != nil {
			return nil, err
		}
		for v := lo; v <= hi; v += step {
			out[v] = true
		}
	}
	return out, nil
}

// parseRange parses a single token of the form "a", "a-b", "a/b", "*/b" or
// "a-b/c" into an inclusive [lo,hi] range with a step.
func parseRange(expr, name string, pos int, tok string, min, max int, names map[string]int) (lo, hi, step int, err error) {
	step = 1
	rangePart := tok
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		rangePart = tok[:i]
		stepStr := tok[i+1:]
		step, err = strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return 0, 0, 0, parseErr(expr, name, pos, "invalid step in "+tok)
		}
	}
	switch {
	case rangePart == "*":
		lo, hi = min, max
	case strings.Contains(rangePart, "-"):
		parts := strings.SplitN(rangePart, "-", 2)
		lo, err = parseValue(parts[0], names)
		if err != nil {
			return 0, 0, 0, parseErr(expr, name, pos, "invalid range start "+parts[0])
		}
		hi, err = parseValue(parts[1], names)
		if err != nil {
			return 0, 0, 0, parseErr(expr, name, pos, "invalid range end "+parts[1])
		}
	default:
		lo, err = parseValue(rangePart, names)
		if err != nil {
			return 0, 0, 0, parseErr(expr, name, pos, "invalid value "+rangePart)
		}
		if !strings.Contains(tok, "/") {
			hi = lo
		} else {
			hi = max
		}
	}
	if lo < min || hi > max || lo > hi {
		return 0, 0, 0, parseErr(expr, name, pos, "value out of range in "+tok)
	}
	return lo, hi, step, nil
}

func parseValue(s string, names map[string]int) (int, error) {
	s = strings.TrimSpace(s)
	if names != nil {
		if v, ok := names[strings.ToUpper(s)]; ok {
			return v, nil
		}
	}
	return strconv.Atoi(s)
}

// normalizeDowField rewrites the bare-"L"-suffix form of Quartz's
// last-weekday-of-month day-of-week syntax ("6L", bare "L") into the
// "#L" form the backing cron library's DowLast option actually parses
// ("6L" becomes "6#L", and bare "L" also becomes "6#L"); every other token (plain values, ranges, steps, "?",
// "*", and tokens already in "#n"/"#L" form) passes through unchanged.
func normalizeDowField(spec string) string {
	if spec == "*" || spec == "?" {
		return spec
	}
	toks := strings.Split(spec, ",")
	for i, tok := range toks {
		trimmed := strings.TrimSpace(tok)
		upper := strings.ToUpper(trimmed)
		switch {
		case upper == "L":
			toks[i] = "6#L" // bare L means the last Saturday, weekday 6 in the 0=Sunday numbering
		case strings.Contains(upper, "#"):
			// already in #n/#L form
		case strings.HasSuffix(upper, "L") && len(upper) > 1:
			toks[i] = trimmed[:len(trimmed)-1] + "#L"
		}
	}
	return strings.Join(toks, ",")
}
