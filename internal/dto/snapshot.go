package dto

import (
	"time"

	"visionbridge/internal/model"
)

// SnapshotView is the JSON form of model.Snapshot sent to viewers.
type SnapshotView struct {
	model.Snapshot
	AutoIntervalMS int64    `json:"auto_interval_ms"`
	ObjectCount    int      `json:"object_count"`
	Objects        []string `json:"objects"`
}

// NewSnapshotView flattens the latest detection for renderers that only
// need the current object list.
func NewSnapshotView(s model.Snapshot) SnapshotView {
	view := SnapshotView{
		Snapshot:       s,
		AutoIntervalMS: s.AutoInterval.Milliseconds(),
		Objects:        []string{},
	}
	if s.Latest != nil {
		view.ObjectCount = s.Latest.ObjectCount
		view.Objects = s.Latest.Objects
	}
	return view
}

// SnapshotMessage is the envelope broadcast over the viewer socket.
type SnapshotMessage struct {
	Type     string       `json:"type"`
	SentAt   time.Time    `json:"sent_at"`
	Snapshot SnapshotView `json:"snapshot"`
}
