// Package ops implements the operation kinds a graph node can carry.
//
// Every kind satisfies the same contract:
//   - InferLayout: deterministic output element type, shape and format from the
//     resolved input layouts
//   - Clone: an independent copy with identical attributes, used when a pass rebinds
//     a node to different producers
//   - Evaluate: a pure, kernel-independent reference execution used for correctness
//     baselines and constant folding
//   - VisitAttributes: enumeration of the serializable state, symmetric between save
//     and load
//
// Kinds are looked up by name through a registry so that serialized models can be
// materialized without knowing the concrete types up front.
package ops
