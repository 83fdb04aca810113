/*
# Confidential Value Package

The confidential package provides the encrypted-value abstraction the tracker
is built on. A Value is an opaque handle to an encrypted scalar held by a
confidential-compute service; no plaintext ever crosses this boundary except
through an explicit decrypt request answered with a verifiable proof.

## Model

  - **Value** - a ciphertext handle plus its bit-width (8 or 16).
  - **Service** - the confidential-compute API: Encrypt, Add (homomorphic),
    Resize (width cast), Grant (capability), RequestDecrypt.
  - **Capability** - a per-value read grant for one principal. Grants are
    additive and never revoked. Only a principal holding a grant on every
    value in a batch may request its decryption.

## Implementations

LocalService (`local.go`) is an in-process stand-in for the external service:
plaintexts are sealed with AES-256-GCM under a random process key, capability
sets are tracked per handle, and decrypt callbacks carry an Ed25519 proof over
the exact byte encoding of the revealed plaintexts. It backs the package
tests, the demo oracle binary and single-process deployments.

An HTTP client for an out-of-process service lives in the services package.
*/
package confidential
