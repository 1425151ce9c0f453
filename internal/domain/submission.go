package domain

import "time"

// Submission is a snapshot of editor contents archived to object storage.
type Submission struct {
	Key        string
	Location   string
	Assignment string
	Language   string
	OwnerID    int64
	Size       int64
	CreatedAt  time.Time
}
