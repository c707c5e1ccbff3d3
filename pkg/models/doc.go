// Package models defines the persistent entities of a content tree.
//
// # Entities
//
//   - [Node]: an entry in a tree, addressed by its materialized path.
//   - [NodeAlias]: an old (parent, name) slot that redirects to a node or
//     marks it as gone.
//   - [Property]: a namespaced key/value pair attached to a node.
//   - [Revision]: a full copy of a revisioned node's content.
//   - [ChangeRecord]: an append-only log of tree mutations.
//
// # Typed IDs
//
// [NodeID] and [RevisionID] wrap a UUID. They are generated client side,
// before insert, so a root node can point its RootID at itself in the
// same statement that creates it. The zero value of either is stored as
// NULL, encodes to JSON null, and to CBOR null; non-zero values encode to
// CBOR as tag 37 UUIDs, which is what the snapshot format relies on.
//
// # Column types
//
// Types adapt their column type to the dialect: UUIDs are native on
// PostgreSQL and varchar(36) elsewhere, and JSON payloads use jsonb on
// PostgreSQL. Property values are kept in a text column so that a payload
// that is not valid JSON survives a read back untouched.
package models
