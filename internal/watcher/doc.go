// Package watcher reports changed source files of a project so it can be
// re-indexed.
//
// Watching is recursive: directories created after New are added as their
// Create events arrive. Events for files whose language is not indexed, or
// whose path matches an exclude pattern, are dropped before debouncing.
package watcher
