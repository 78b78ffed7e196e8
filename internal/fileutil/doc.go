// Package fileutil provides file helpers for the persisted state files.
//
// Writes go to a temporary file in the destination directory and are renamed
// into place, so readers observe either the previous or the new content.
package fileutil
