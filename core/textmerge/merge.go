package textmerge

import (
	"bytes"
	"fmt"
)

// Status classifies the outcome of a text merge.
type Status int

const (
	// StatusUnchanged means the file is left as it is.
	StatusUnchanged Status = iota
	// StatusUpdated means the incoming change applied to an unmodified file.
	StatusUpdated
	// StatusMerged means the incoming change combined with local edits.
	StatusMerged
	// StatusConflicted means the edits overlap.
	StatusConflicted
)

// Code returns the notification column for the status.
func (s Status) Code() byte {
	switch s {
	case StatusUpdated:
		return 'U'
	case StatusMerged:
		return 'G'
	case StatusConflicted:
		return 'C'
	}
	return ' '
}

func (s Status) String() string {
	switch s {
	case StatusUpdated:
		return "updated"
	case StatusMerged:
		return "merged"
	case StatusConflicted:
		return "conflicted"
	}
	return "unchanged"
}

// Options tune how lines are compared and which line ending applies.
type Options struct {
	// IgnoreSpaceChange treats runs of blanks as a single space (-b).
	IgnoreSpaceChange bool `json:"ignore_space_change"`
	// IgnoreAllSpace ignores blanks entirely (-w).
	IgnoreAllSpace bool `json:"ignore_all_space"`
	// IgnoreEOLStyle ignores line ending differences.
	IgnoreEOLStyle bool `json:"ignore_eol_style"`
	// EOLStyle is the file's svn:eol-style: native, LF, CRLF, CR or empty.
	EOLStyle string `json:"eol_style,omitempty"`
	// NativeEOL is the line ending used for the native style.
	NativeEOL string `json:"-"`
	// Binary forces whole-content handling.
	Binary bool `json:"binary,omitempty"`
}

// Input holds the three versions of a file.
type Input struct {
	Base     []byte
	Theirs   []byte
	Mine     []byte
	LeftRev  int64
	RightRev int64
	Options  Options
}

// Sidecar is an extra file written next to a conflicted file.
type Sidecar struct {
	// Suffix is appended to the file name, e.g. ".merge-left.r3".
	Suffix  string
	Content []byte
}

// Result is the outcome of Merge.
type Result struct {
	Status Status
	// Content is what the file holds after the merge.
	Content []byte
	// Sidecars is set only for conflicts.
	Sidecars []Sidecar
	// Binary reports whether the file was handled as binary.
	Binary bool
}

// Merge runs the three-way merge of in.
func Merge(in Input) (*Result, error) {
	if in.Options.Binary || IsBinary(in.Base) || IsBinary(in.Theirs) || IsBinary(in.Mine) {
		return mergeBinary(in), nil
	}

	base, theirs, mine := in.Base, in.Theirs, in.Mine
	var eol string
	if in.Options.EOLStyle != "" {
		var err error
		if eol, err = EOLFor(in.Options.EOLStyle, in.Options.NativeEOL); err != nil {
			return nil, err
		}
		base = NormalizeEOL(base, eol)
		theirs = NormalizeEOL(theirs, eol)
		mine = NormalizeEOL(mine, eol)
	}
	localEdits := !bytes.Equal(mine, base)

	switch {
	case bytes.Equal(base, theirs):
		if bytes.Equal(mine, in.Mine) {
			return &Result{Status: StatusUnchanged, Content: in.Mine}, nil
		}
		// Only the declared line ending changed mine.
		if localEdits {
			return &Result{Status: StatusMerged, Content: mine}, nil
		}
		return &Result{Status: StatusUpdated, Content: mine}, nil
	case bytes.Equal(mine, theirs):
		return &Result{Status: StatusMerged, Content: mine}, nil
	case !localEdits:
		return &Result{Status: StatusUpdated, Content: theirs}, nil
	}

	if eol == "" {
		eol = firstEOL(mine)
	}
	if eol == "" {
		eol = "\n"
	}

	content, conflicted := merge3(base, theirs, mine, in.Options, eol, in.RightRev)
	if conflicted {
		return &Result{
			Status:  StatusConflicted,
			Content: content,
			Sidecars: []Sidecar{
				{Suffix: LeftSuffix(in.LeftRev), Content: base},
				{Suffix: RightSuffix(in.RightRev), Content: theirs},
				{Suffix: WorkingSuffix, Content: mine},
			},
		}, nil
	}
	if bytes.Equal(content, in.Mine) {
		return &Result{Status: StatusUnchanged, Content: in.Mine}, nil
	}
	return &Result{Status: StatusMerged, Content: content}, nil
}

// WorkingSuffix names the sidecar holding the pre-merge local file.
const WorkingSuffix = ".working"

// LeftSuffix names the sidecar holding the base at rev.
func LeftSuffix(rev int64) string {
	return fmt.Sprintf(".merge-left.r%d", rev)
}

// RightSuffix names the sidecar holding the incoming version at rev.
func RightSuffix(rev int64) string {
	return fmt.Sprintf(".merge-right.r%d", rev)
}

func merge3(base, theirs, mine []byte, opts Options, eol string, rightRev int64) ([]byte, bool) {
	baseLines := splitLines(base)
	theirsLines := splitLines(theirs)
	mineLines := splitLines(mine)

	regions := diff3(keys(baseLines, opts), keys(mineLines, opts), keys(theirsLines, opts))

	var buf bytes.Buffer
	conflicted := false
	for _, r := range regions {
		switch r.kind {
		case regionSync, regionSame, regionMine:
			writeLines(&buf, mineLines[r.mine.start:r.mine.end], "")
		case regionTheirs:
			writeLines(&buf, theirsLines[r.theirs.start:r.theirs.end], "")
		case regionConflict:
			conflicted = true
			buf.WriteString("<<<<<<< " + WorkingSuffix + eol)
			writeLines(&buf, mineLines[r.mine.start:r.mine.end], eol)
			buf.WriteString("=======" + eol)
			writeLines(&buf, theirsLines[r.theirs.start:r.theirs.end], eol)
			buf.WriteString(">>>>>>> " + RightSuffix(rightRev) + eol)
		}
	}
	return buf.Bytes(), conflicted
}

// writeLines copies lines to buf. When closeWith is set, a final line without a
// terminator gets one so a following marker starts on its own line.
func writeLines(buf *bytes.Buffer, lines [][]byte, closeWith string) {
	for _, line := range lines {
		buf.Write(line)
	}
	if closeWith != "" && len(lines) > 0 && terminator(lines[len(lines)-1]) == nil {
		buf.WriteString(closeWith)
	}
}

func keys(lines [][]byte, opts Options) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = opts.key(line)
	}
	return out
}
