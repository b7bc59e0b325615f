// Package graph holds the program: the compiled, mutable intermediate representation
// built from a topology and rewritten by optimization passes.
//
// Nodes live in an arena indexed by NodeID. Edges are never stored on their own; they
// are derived from each node's input references, and the program keeps a consumer list
// per node so that passes can walk the graph in both directions. Every mutator keeps
// the graph acyclic and every input reference resolvable, and re-runs layout inference
// on the nodes it touches.
//
// Output names are kept in an alias table: when a pass replaces the node holding an
// output, the name moves with the value.
package graph
