// Package daemon is the thumbnail render loop. It polls the catalog for
// assets with missing or stale thumbnails, partitions them by file size
// into fast and slow lanes with independent fixed worker pools and
// timeouts, renders through the fallback chain, and records each result
// with a single atomic catalog update.
//
// The per-item timeout is advisory for in-process backends: libvips
// decodes cannot be interrupted mid-call, so a render that is already
// inside the C library finishes (or hangs) past the deadline and the
// overrun is only accounted for afterwards. Remote staging honours the
// deadline between read chunks.
package daemon
