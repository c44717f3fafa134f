// Package muzero provides the shared primitives for
// training MuZero-style agents: the model inference
// contract, aligned training batches, categorical value
// supports, checkpoints, and the storage interfaces that
// connect a trainer to its replay buffer and checkpoint
// registry.
//
// The training loop itself lives in the muzerotrain
// sub-package.
package muzero
