// Package storage holds what the blob storage backends share.
package storage

import "errors"

// ErrNotFound is returned when a blob key does not exist.
var ErrNotFound = errors.New("blob not found")
