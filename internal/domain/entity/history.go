package entity

import "time"

// StatusHistory is one entry of a request's status audit trail
type StatusHistory struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	ThreadID       string    `json:"thread_id"`
	ActorID        string    `json:"actor_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Trigger        string    `json:"trigger"`
	Detail         string    `json:"detail"`
	Timestamp      time.Time `json:"timestamp"`
}
