package textmerge

import (
	"bytes"
	"fmt"
)

// splitLines breaks content into lines that keep their terminators.
// "\n", "\r\n" and a lone "\r" all end a line.
func splitLines(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '\n':
			lines = append(lines, b[start:i+1])
			start = i + 1
		case '\r':
			if i+1 < len(b) && b[i+1] == '\n' {
				i++
			}
			lines = append(lines, b[start:i+1])
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, b[start:])
	}
	return lines
}

func terminator(line []byte) []byte {
	switch {
	case bytes.HasSuffix(line, []byte("\r\n")):
		return line[len(line)-2:]
	case bytes.HasSuffix(line, []byte("\n")), bytes.HasSuffix(line, []byte("\r")):
		return line[len(line)-1:]
	}
	return nil
}

func trimEOL(line []byte) []byte {
	return line[:len(line)-len(terminator(line))]
}

// firstEOL returns the first line ending found in b, or "".
func firstEOL(b []byte) string {
	for _, line := range splitLines(b) {
		if eol := terminator(line); eol != nil {
			return string(eol)
		}
	}
	return ""
}

// EOLFor maps an svn:eol-style value to its line ending.
// An empty native defaults to "\n".
func EOLFor(style, native string) (string, error) {
	switch style {
	case "native":
		if native == "" {
			return "\n", nil
		}
		return native, nil
	case "LF":
		return "\n", nil
	case "CRLF":
		return "\r\n", nil
	case "CR":
		return "\r", nil
	}
	return "", fmt.Errorf("unknown eol style %q", style)
}

// NormalizeEOL rewrites every line ending in b to eol.
func NormalizeEOL(b []byte, eol string) []byte {
	if len(b) == 0 {
		return b
	}
	var buf bytes.Buffer
	buf.Grow(len(b))
	for _, line := range splitLines(b) {
		body := trimEOL(line)
		buf.Write(body)
		if len(body) != len(line) {
			buf.WriteString(eol)
		}
	}
	return buf.Bytes()
}

// key returns the comparison key of a line under the ignore options.
func (o Options) key(line []byte) string {
	eol := terminator(line)
	body := trimEOL(line)
	if o.IgnoreEOLStyle {
		eol = nil
	}

	switch {
	case o.IgnoreAllSpace:
		body = stripSpace(body)
	case o.IgnoreSpaceChange:
		body = collapseSpace(body)
	}
	return string(body) + string(eol)
}

// stripSpace drops spaces and tabs byte by byte so invalid UTF-8 survives.
func stripSpace(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != ' ' && c != '\t' {
			out = append(out, c)
		}
	}
	return out
}

func collapseSpace(b []byte) []byte {
	out := make([]byte, 0, len(b))
	inSpace := false
	for _, c := range b {
		if c == ' ' || c == '\t' {
			inSpace = true
			continue
		}
		if inSpace && len(out) > 0 {
			out = append(out, ' ')
		}
		inSpace = false
		out = append(out, c)
	}
	return out
}
