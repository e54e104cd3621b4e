package rangelist

import (
	"fmt"
	"strconv"
	"strings"
)

// MalformedRangelistError reports a rangelist string that cannot be decoded.
type MalformedRangelistError struct {
	// Input is the offending text.
	Input string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *MalformedRangelistError) Error() string {
	return fmt.Sprintf("malformed rangelist %q: %s", e.Input, e.Reason)
}

// Parse decodes the canonical form produced by Rangelist.String.
// The empty string decodes to the empty list.
func Parse(s string) (Rangelist, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out Rangelist
	for _, token := range strings.Split(s, ",") {
		r, err := parseRange(strings.TrimSpace(token))
		if err != nil {
			return nil, &MalformedRangelistError{Input: s, Reason: err.Error()}
		}
		if n := len(out); n > 0 && r.Start < out[n-1].End {
			return nil, &MalformedRangelistError{Input: s, Reason: fmt.Sprintf("range %s is out of order", token)}
		}
		out = append(out, r)
	}
	return normalize(out), nil
}

// MustParse is like Parse but panics on malformed input. It is meant for
// literals in tests and fixtures.
func MustParse(s string) Rangelist {
	rl, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return rl
}

func parseRange(token string) (Range, error) {
	if token == "" {
		return Range{}, fmt.Errorf("empty range")
	}

	first, last, isSpan := strings.Cut(token, "-")
	if first == "" {
		return Range{}, fmt.Errorf("negative revision in %q", token)
	}

	start, err := parseRevision(first)
	if err != nil {
		return Range{}, err
	}
	end := start
	if isSpan {
		if end, err = parseRevision(last); err != nil {
			return Range{}, err
		}
	}

	if start < 1 {
		return Range{}, fmt.Errorf("revision %d cannot start a range", start)
	}
	if end < start {
		return Range{}, fmt.Errorf("zero-width range %q", token)
	}
	return Range{Start: start - 1, End: end}, nil
}

func parseRevision(s string) (int64, error) {
	rev, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid revision %q", s)
	}
	if rev < 0 {
		return 0, fmt.Errorf("negative revision %d", rev)
	}
	return rev, nil
}
