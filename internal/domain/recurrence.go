package domain

import "time"

// Recurrence describes when a scheduled event fires next.
// Closed variant set; consumers switch exhaustively.
type Recurrence interface {
	isRecurrence()
}

// Interval fires a fixed number of seconds after the reference instant.
type Interval struct {
	Seconds int
}

// Daily fires every day at the given local hour and minute.
type Daily struct {
	Hour   int
	Minute int
}

// Weekdays fires Monday through Friday at the given local hour and minute.
type Weekdays struct {
	Hour   int
	Minute int
}

// Weekly fires once a week on the given weekday at the given local
// hour and minute.
type Weekly struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

func (Interval) isRecurrence() {}
func (Daily) isRecurrence()    {}
func (Weekdays) isRecurrence() {}
func (Weekly) isRecurrence()   {}
