package propmerge

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// DirPrej is the conflict file written inside a directory for its own properties.
const DirPrej = "dir_conflicts.prej"

// Result is the outcome of Merge.
type Result struct {
	// Props is the merged property set for mine.
	Props map[string]string
	// Status is the property notification column: ' ', 'U', 'G' or 'C'.
	Status byte
	// Conflicts holds one description per conflicting property, in name order.
	Conflicts []string
	// Changed lists the properties whose value was applied to mine.
	Changed []string
}

// Conflicted reports whether any property conflicted.
func (r Result) Conflicted() bool {
	return len(r.Conflicts) > 0
}

// Merge applies the change from base to theirs onto mine.
func Merge(base, theirs, mine map[string]string) Result {
	sorted := lo.Union(lo.Keys(base), lo.Keys(theirs), lo.Keys(mine))
	sort.Strings(sorted)

	res := Result{Props: maps.Clone(mine), Status: ' '}
	if res.Props == nil {
		res.Props = map[string]string{}
	}

	touched := false
	for _, name := range sorted {
		b, inBase := base[name]
		t, inTheirs := theirs[name]
		m, inMine := mine[name]

		switch {
		case inBase == inTheirs && b == t:
			continue
		case inBase && !inTheirs && !inMine:
			res.Conflicts = append(res.Conflicts, fmt.Sprintf(
				"Trying to delete property '%s' with value '%s'\nbut the property does not exist.\n",
				name, Escape(b)))
		case inMine == inBase && m == b:
			if inTheirs {
				res.Props[name] = t
			} else {
				delete(res.Props, name)
			}
			res.Changed = append(res.Changed, name)
			touched = true
		case inMine == inTheirs && m == t:
			touched = true
		default:
			res.Conflicts = append(res.Conflicts, describe(name, b, inBase, t, inTheirs, m, inMine))
		}
	}

	switch {
	case len(res.Conflicts) > 0:
		res.Status = 'C'
	case touched && equal(mine, base):
		res.Status = 'U'
	case touched:
		res.Status = 'G'
	}
	return res
}

func describe(name, b string, inBase bool, t string, inTheirs bool, m string, inMine bool) string {
	switch {
	case !inBase:
		return fmt.Sprintf("Trying to add new property '%s' with value '%s',\nbut property already exists with value '%s'.\n",
			name, Escape(t), Escape(m))
	case !inTheirs:
		return fmt.Sprintf("Trying to delete property '%s' with value '%s'\nbut it has been modified from '%s' to '%s'.\n",
			name, Escape(b), Escape(b), Escape(m))
	case !inMine:
		return fmt.Sprintf("Trying to change property '%s' from '%s' to '%s',\nbut the property does not exist.\n",
			name, Escape(b), Escape(t))
	}
	return fmt.Sprintf("Trying to change property '%s' from '%s' to '%s',\nbut property has been locally changed from '%s' to '%s'.\n",
		name, Escape(b), Escape(t), Escape(b), Escape(m))
}

// Escape renders a property value for a conflict description. Bytes that are
// not part of valid UTF-8 become ?\DDD with the decimal byte value.
func Escape(v string) string {
	if utf8.ValidString(v) {
		return v
	}
	var sb strings.Builder
	for i := 0; i < len(v); {
		r, size := utf8.DecodeRuneInString(v[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&sb, "?\\%d", v[i])
		} else {
			sb.WriteString(v[i : i+size])
		}
		i += size
	}
	return sb.String()
}

// PrejName returns the conflict file name for a node's properties. For a
// directory the file lives inside the directory.
func PrejName(name string, isDir bool) string {
	if isDir {
		return DirPrej
	}
	return name + ".prej"
}

// Description joins conflict descriptions into the text of a .prej file.
func Description(conflicts []string) []byte {
	return []byte(strings.Join(conflicts, ""))
}

func equal(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
