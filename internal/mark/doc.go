// Package mark groups calendar marks by date, diffs successive mark sets so
// hosts can redraw only affected cells, and answers per-date decoration and
// per-schedule range queries.
package mark
