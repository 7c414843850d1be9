// Package volume maps catalog volumes onto real filesystems. It resolves
// absolute paths to volume-relative ones with a traversal guard, and
// provides Source implementations for local mounts and SFTP shares.
package volume
