package booking

import (
	"fmt"
	"strings"
)

// TaskUpdate is one incoming task in an update payload. ID zero means the
// task is new; any other id is matched against the appointment's existing
// tasks.
type TaskUpdate struct {
	ID          int64
	Description string
	IsCompleted bool
}

func notesChangeEntry(old, new string) string {
	return fmt.Sprintf("Notes: %q -> %q", old, new)
}

func taskChangeEntry(old AppointmentTask, in TaskUpdate) string {
	return fmt.Sprintf("Task #%d: %q/%t -> %q/%t",
		old.ID, old.Description, old.IsCompleted, in.Description, in.IsCompleted)
}

func taskAddedEntry(description string) string {
	return fmt.Sprintf("Task + %q (new)", description)
}

// joinChanges assembles a change-log description from individual diff
// entries, truncated to the change-log column limit.
func joinChanges(entries []string) string {
	return truncateDescription(strings.Join(entries, "; "))
}

// truncateDescription caps a change description at MaxChangeDescriptionLen
// characters. Counted in runes so a multi-byte boundary is never split.
func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= MaxChangeDescriptionLen {
		return s
	}
	return string(r[:MaxChangeDescriptionLen])
}
