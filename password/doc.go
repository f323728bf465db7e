// Package password hashes and verifies account credentials with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every call to [Argon2.Hash] draws a fresh random salt and embeds it in the
// output, so verification needs nothing but the encoded string.
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login.
//
// Hashing is CPU- and memory-bound. [Config.MaxConcurrent] bounds how many
// derivations run at once; waiting callers give up when their context ends.
//
// This package never stores or logs plaintext passwords.
package password
