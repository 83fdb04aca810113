/*
# Period Aggregation Protocol

The protocol package implements the confidential period aggregation engine:
a state machine that accepts one encrypted observation per authorized
reporter per reporting window, folds the observations into two encrypted
accumulators by homomorphic addition, and reveals only the aggregates
through a verified decrypt callback.

## Lifecycle

A period moves through:

	Closed -> Active -> AwaitingDecryption -> Finalized

with a second terminal state, EmergencyEnded, reachable directly from
Active for coordinator-forced closure without analysis. Finalizing or
emergency-ending a period advances the engine's current ordinal; the
coordinator opens the next window explicitly.

## Guarantees

  - No party without an explicit capability ever sees a plaintext value.
    Each observation is readable only by the engine and the submitting
    reporter; accumulators are readable only by the engine; nothing is
    revealed for emergency-ended periods.
  - Aggregation cannot be replayed or double-counted: one observation per
    (period, reporter), enforced before any accumulator mutation.
  - The reveal is verified and atomic: a callback whose proof fails
    verification leaves the period in AwaitingDecryption untouched.

All mutating operations on the engine are serialized by a single mutex; the
status field doubles as the mutual-exclusion flag between submission and
finalization. No operation blocks internally; the decrypt callback is the
only asynchronous suspension point.
*/
package protocol
