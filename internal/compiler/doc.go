// Package compiler turns a model tree into the pieces a store runs on.
//
// Compile walks the tree once, visiting keys in lexical order at each
// level. The walk produces:
//   - the initial state tree (State values, nested models and raw reducer
//     initial values; behavior nodes contribute nothing)
//   - one Entry per behavior node, addressed by Path
//   - the command tree (mutators and effects only)
//   - the root Reducer
//   - the listener registry, mapping action types to listener entries in
//     registration order
//   - static cycle warnings for listener chains
//
// Configuration problems are collected across the whole tree and reported
// together as ConfigErrors. A model that fails to compile never yields a
// store.
package compiler
