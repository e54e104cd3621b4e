// Package mergeinfo serves the repository's mergeinfo index over HTTP.
//
// # HTTP Endpoints
//
//   - GET /mergeinfo?path=&rev=&mode= : mergeinfo of one path. mode is
//     explicit, inherited (default) or nearest-ancestor; rev defaults to HEAD.
//   - GET /mergeinfo/tree?path=&rev= : mergeinfo of a path and of every
//     descendant with explicit mergeinfo.
//
// Rangelists are returned in their canonical text form, keyed by source path.
// Invalid parameters answer 400; index failures answer 500.
package mergeinfo
