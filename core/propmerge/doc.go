// Package propmerge merges node properties three ways.
//
// Each property name found in base, theirs or mine is decided on its own:
// an unchanged incoming value is ignored, an incoming change applies when mine
// still matches base, a change already present in mine is accepted, and anything
// else is a conflict. Deleting a property that mine never had is also a conflict.
//
// Conflicts are described in the text written to a ".prej" file next to the node,
// or to "dir_conflicts.prej" inside a directory:
//
//	Trying to change property 'foo' from 'foo_val' to 'mod_foo',
//	but the property does not exist.
//
// Values that are not valid UTF-8 are shown with each bad byte escaped as ?\DDD.
package propmerge
