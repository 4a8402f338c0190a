//go:generate mockgen -source=ports.go -destination=../mocks/collab.go -package=mocks .
package collab

import "github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows a short message to the local user.
type Notifier interface {
	Notify(level Level, message string)
}

// DropReporter counts events the controller applied or discarded.
type DropReporter interface {
	EventApplied(name events.Name)
	EventDropped(name events.Name, err error)
}
