// Package muzerotrain implements the training side of a
// MuZero-style agent: a coordinator that pulls sampled
// batches from a replay buffer, unrolls the learned
// dynamics over future steps, fits a composite loss,
// feeds fresh priorities back to the buffer, and
// publishes checkpoints while pacing itself against the
// self-play workers it shares storage with.
package muzerotrain
