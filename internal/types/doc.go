/*
Package types defines the data structures shared by every table in tablesync.

# Overview

The types package provides shared type definitions for:
  - Query parameters (search text, page, page size)
  - Records and record sets as delivered by REST and the push channel
  - Sort assignments produced by drag reordering
  - Context menu state
  - Mutation results and the current user

# Query Parameters

QueryParams is an immutable value. It is recomputed whenever the user
changes the search text, the page, or the page size, and it is sent both as
REST query parameters and as the body of the push-channel subscribe message:

	GET /api/general/department?searchQuery=foo&currentPage=2&itemsPerPage=20

	{"action":"subscribe","searchQuery":"foo","currentPage":2,"itemsPerPage":20}

Page sizes are restricted to PageSizes (5, 10, 20, 50).

# Records

Records are opaque JSON objects. The framework only looks at the "id"
field. IDs are normalized to their string form so that the JSON number 1
and the string "1" compare equal:

	rec := types.Record{"id": float64(1), "name": "Sales"}
	rec.ID() // "1"

Within one RecordSet ids are unique; RecordSet.Validate reports the first
duplicate. Ordering only matters for reorderable tables.

# Sort Assignments

SortAssignment pairs a record id with a sort key. Keys are spaced by
SortSpacing (1000) so that rows can later be inserted between two
neighbours without renumbering the whole table:

	[{"id":3,"sort":1000},{"id":1,"sort":2000},{"id":2,"sort":3000}]

# Mutation Results

Create, update, delete and sort endpoints answer with APIResult. A result
with Success=false and a Field names the form input that should display
the message; without Field the message is shown as a generic toast.
*/
package types
