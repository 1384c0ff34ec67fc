package content

import (
	"fmt"
	"time"
)

// Task is a task block together with its position in the block list.
type Task struct {
	Index int
	Data  TaskData
}

// DeadlineAt parses the deadline, reporting false when unset or malformed.
func (t TaskData) DeadlineAt() (time.Time, bool) {
	return parseInstant(t.Deadline)
}

func (t TaskData) ReminderAt() (time.Time, bool) {
	return parseInstant(t.Reminder)
}

// Overdue reports whether the task is open and its deadline has passed.
func (t TaskData) Overdue(now time.Time) bool {
	if t.Checked {
		return false
	}
	deadline, ok := t.DeadlineAt()
	return ok && deadline.Before(now)
}

func parseInstant(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Tasks returns every task block of c. Blocks whose payload cannot be
// decoded are skipped.
func Tasks(c Content) []Task {
	var tasks []Task
	for i, block := range c.Blocks {
		if block.Type != TypeTask {
			continue
		}
		data, err := Payload[TaskData](block)
		if err != nil {
			continue
		}
		tasks = append(tasks, Task{Index: i, Data: data})
	}
	return tasks
}

// SetTaskChecked returns a copy of c with the task at index marked checked
// or unchecked.
func SetTaskChecked(c Content, index int, checked bool) (Content, error) {
	if index < 0 || index >= len(c.Blocks) {
		return Content{}, fmt.Errorf("task index %d out of range", index)
	}
	if c.Blocks[index].Type != TypeTask {
		return Content{}, fmt.Errorf("block %d is %s, not a task", index, c.Blocks[index].Type)
	}
	out := c.Clone()
	out.Blocks[index].Data["checked"] = checked
	return out, nil
}

type TaskSummary struct {
	Total     int
	Completed int
	Overdue   int
}

// Percent is the completed share rounded down, 0 for no tasks.
func (s TaskSummary) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Completed * 100 / s.Total
}

func Summarize(c Content, now time.Time) TaskSummary {
	var summary TaskSummary
	for _, task := range Tasks(c) {
		summary.Total++
		if task.Data.Checked {
			summary.Completed++
		}
		if task.Data.Overdue(now) {
			summary.Overdue++
		}
	}
	return summary
}
