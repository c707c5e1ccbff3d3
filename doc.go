// Package nodular publishes hierarchical, path-addressable content trees
// stored in a relational database.
//
// # Trees
//
// Every node has a name, a parent and a materialized path. Root nodes have
// the path "/". The [github.com/hasgeek/nodular/pkg/tree] engine keeps
// paths, root ids and aliases consistent when nodes are created, renamed,
// moved or deleted, one store transaction per mutation.
//
// When a node leaves a name the engine leaves an alias behind, so old URLs
// keep working: a rename in place redirects to the node's new path, while
// a move away or a delete marks the name as gone.
//
// # Publishing
//
// A [github.com/hasgeek/nodular/pkg/traverse] resolver walks a request
// path as far as the tree goes and reports a match, a partial match with
// the remaining fragment, a redirect through an alias, a gone marker, or
// a missing root. The [github.com/hasgeek/nodular/pkg/publisher] then
// dispatches the fragment to the views registered for the node's type in
// the [github.com/hasgeek/nodular/pkg/registry]:
//
//	reg := registry.New()
//	engine := tree.New(st, tree.WithTypeChecker(reg))
//	views.Register(reg, engine)
//
//	resolver, _ := traverse.New(st, traverse.RootNamed("site"), "/", "")
//	http.Handle("/", publisher.New(resolver, reg))
//
// # Storage
//
// [github.com/hasgeek/nodular/pkg/store/gormstore] implements the store on
// GORM, against PostgreSQL in production and SQLite in tests.
//
// # Command line
//
// cmd/nodular runs migrations, serves a tree over HTTP, prints trees, and
// dumps and restores CBOR snapshots. See
// [github.com/hasgeek/nodular/pkg/nodularapp].
package nodular
