// Package fusion implements the planar velocity estimator that fuses a
// high-rate biased accelerometer stream with a lower-rate optical-flow
// velocity stream.
//
// The filter state is [vx, vy, ax, ay]: a direct velocity channel corrected
// by optical flow and propagated by the acceleration channel, plus an
// auxiliary acceleration channel corrected directly by the accelerometer.
// Each incoming sample drives one predict+correct cycle against a single
// shared event clock; acceleration-driven cycles additionally integrate
// position and emit the published outputs.
package fusion
