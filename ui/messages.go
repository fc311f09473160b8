package ui

import (
	"chatview/chat"
	"chatview/model"
)

type snapshotMsg struct {
	Snapshot chat.Snapshot
	Closed   bool
}

type markdownRenderedMsg struct {
	MessageID string
	Width     int
	Rendered  string
}

type modelsListMsg struct {
	Models []model.ModelInfo
	Err    error
}

type pingMsg struct {
	Latency string
	Err     error
}

type clipboardMsg struct {
	Err error
}
