/*
Package rockyardkv provides a pure-Go embedded, ordered key/value store
built on a log-structured merge-tree (LSM).

RockyardKV persists arbitrary byte-string keys and values, and supports
point lookups, ordered iteration, atomic multi-key writes via WriteBatch,
and point-in-time snapshots. Durability and crash consistency on a single
host are maintained through a write-ahead log and a MANIFEST that records
every change to the set of on-disk sorted files.

The engine is organized in layers: a write pipeline that group-commits
concurrent writers into the WAL and the active memtable, a background
flush path that converts sealed memtables into level-0 sorted files, and
a compaction engine that merges files down a level hierarchy to bound
space and read amplification. See db.DB for the primary entry point and
package transaction-related files (transaction_db.go, pessimistic_transaction.go)
for ACID transactions layered on top.

# Usage

For runnable examples, see the repository's examples directory. The examples
are written against the public API and are kept up-to-date as the API evolves.

# Concurrency

A DB instance is safe for concurrent use by multiple goroutines. Individual
Iterator instances are not safe for concurrent use; each goroutine should
use its own iterator.

# Compatibility

The on-disk format (SST block layout, WAL framing, MANIFEST encoding) is
private to this module and may change between major versions; options_file.go
writes an engine_version marker into each OPTIONS file and parses it back.
Nothing compares that marker when a directory is opened.
*/
package rockyardkv
