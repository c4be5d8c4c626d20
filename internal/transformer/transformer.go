// Package transformer projects raw agent events into the stable wire
// schema the UI consumes. It never blocks the agent loop: every exported
// conversion is a pure function over one message plus identifying ids,
// using one flexible, omitempty-tagged struct covering several event
// kinds rather than a sum type per kind.
package transformer

import "time"

// EventKind tags which of the three projected shapes an Event carries.
type EventKind string

const (
	KindText         EventKind = "text"
	KindThought      EventKind = "thought"
	KindFileSnapshot EventKind = "file_snapshot"
)

// Status is shared by thought and file_snapshot events.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusCompleted Status = "completed"
)

// FileLine is one rendered line of a file snapshot's YAML body.
type FileLine struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// Event is the single wire shape every projected event serializes to.
// Only the fields relevant to Type are populated; the rest are zero
// and dropped by omitempty.
type Event struct {
	Type      EventKind `json:"type"`
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`

	// text
	MessageChunk string `json:"message_chunk,omitempty"`
	Message      string `json:"message,omitempty"`

	// thought
	ThoughtTitle          string   `json:"thought_title,omitempty"`
	ThoughtSecondaryTitle string   `json:"thought_secondary_title,omitempty"`
	Thoughts              []string `json:"thoughts,omitempty"`

	// file snapshot
	FileType      string     `json:"file_type,omitempty"`
	FileName      string     `json:"file_name,omitempty"`
	VersionNumber int        `json:"version_number,omitempty"`
	VersionID     string     `json:"version_id,omitempty"`
	File          []FileLine `json:"file,omitempty"`

	// shared by thought and file_snapshot
	Status Status `json:"status,omitempty"`
}

// TextChunk projects an in-progress assistant text delta.
func TextChunk(messageID, chunk string) Event {
	return Event{Type: KindText, MessageID: messageID, MessageChunk: chunk}
}

// TextComplete projects a finished assistant message.
func TextComplete(messageID, message string) Event {
	return Event{Type: KindText, MessageID: messageID, Message: message}
}

// ThoughtStarted projects a tool call's loading state.
func ThoughtStarted(messageID, title string) Event {
	return Event{Type: KindThought, MessageID: messageID, ThoughtTitle: title, Status: StatusLoading}
}

// ThoughtFinished projects a tool call's completion, formatting the
// elapsed duration as the thought's secondary title the way a loading
// spinner resolves to "3.2s" in a chat UI.
func ThoughtFinished(messageID, title string, started, ended time.Time, thoughts []string) Event {
	return Event{
		Type:                  KindThought,
		MessageID:             messageID,
		ThoughtTitle:          title,
		ThoughtSecondaryTitle: formatDuration(ended.Sub(started)),
		Thoughts:              thoughts,
		Status:                StatusCompleted,
	}
}

// FileSnapshotStarted projects the loading state emitted the instant a
// create_*/modify_* tool call begins.
func FileSnapshotStarted(messageID, fileType, fileName string) Event {
	return Event{
		Type:      KindFileSnapshot,
		MessageID: messageID,
		FileType:  fileType,
		FileName:  fileName,
		Status:    StatusLoading,
	}
}

// FileSnapshotFinished projects the full rendered YAML of a newly
// created or updated asset version.
func FileSnapshotFinished(messageID, fileType, fileName string, versionNumber int, versionID string, lines []FileLine) Event {
	return Event{
		Type:          KindFileSnapshot,
		MessageID:     messageID,
		FileType:      fileType,
		FileName:      fileName,
		VersionNumber: versionNumber,
		VersionID:     versionID,
		File:          lines,
		Status:        StatusCompleted,
	}
}

// IsComplete reports whether an event may be forwarded to a persistent
// downstream channel.
func IsComplete(e Event) bool {
	switch e.Type {
	case KindText:
		return e.MessageChunk == ""
	case KindThought, KindFileSnapshot:
		return e.Status == StatusCompleted
	default:
		return false
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return d.Round(100 * time.Millisecond).String()
}
