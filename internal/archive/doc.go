// Package archive walks zip and rar containers so their members can be
// cataloged as first-class assets without extracting to disk.
package archive
