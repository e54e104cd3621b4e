package textmerge

import (
	"bytes"
	"strings"
)

// MimeTypeProperty declares a file's content type.
const MimeTypeProperty = "svn:mime-type"

// EOLStyleProperty declares a file's line ending convention.
const EOLStyleProperty = "svn:eol-style"

const sniffLen = 8000

// IsBinaryMimeType reports whether a declared mime type marks a file as binary.
func IsBinaryMimeType(mimeType string) bool {
	return mimeType != "" && !strings.HasPrefix(mimeType, "text/")
}

// IsBinary reports whether content looks binary: a NUL byte within its first
// 8000 bytes.
func IsBinary(content []byte) bool {
	if len(content) > sniffLen {
		content = content[:sniffLen]
	}
	return bytes.IndexByte(content, 0) >= 0
}

func mergeBinary(in Input) *Result {
	switch {
	case bytes.Equal(in.Base, in.Theirs), bytes.Equal(in.Mine, in.Theirs):
		return &Result{Status: StatusUnchanged, Content: in.Mine, Binary: true}
	case bytes.Equal(in.Mine, in.Base):
		return &Result{Status: StatusUpdated, Content: in.Theirs, Binary: true}
	}
	return &Result{
		Status:  StatusConflicted,
		Content: in.Mine,
		Binary:  true,
		Sidecars: []Sidecar{
			{Suffix: LeftSuffix(in.LeftRev), Content: in.Base},
			{Suffix: RightSuffix(in.RightRev), Content: in.Theirs},
		},
	}
}
