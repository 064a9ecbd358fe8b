/*
Package fs persists the chore state document on a filesystem volume.

The whole state lives in a single file, `<directory>/chore-state.json`, that is
read wholesale on fetch and replaced wholesale on save. There is no schema: any
JSON object is accepted and stored as-is, the last writer wins.

Readers and writers are serialized through a pkg/lock readers-writer lock, and
writes can go through a temporary file renamed over the target so that a crash
mid-write never leaves a torn document behind. A missing or corrupted file is
not an error, it is served as the empty state.
*/
package fs
