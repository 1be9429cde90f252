package domain

import "github.com/google/uuid"

// GeneralStatistics counts occurrences of a node under a given parent xpath
// within one task's input. Occurrence is a pure additive counter.
type GeneralStatistics struct {
	TaskID      int64  `json:"task_id"`
	ParentXpath string `json:"parent_xpath"`
	NodeXpath   string `json:"node_xpath"`
	Occurrence  int64  `json:"occurrence"`
}

// NodeStatistics counts occurrences of one value at one node xpath.
type NodeStatistics struct {
	TaskID      int64  `json:"task_id"`
	ParentXpath string `json:"parent_xpath"`
	NodeXpath   string `json:"node_xpath"`
	NodeValue   string `json:"node_value"`
	Occurrence  int64  `json:"occurrence"`

	Attributes []AttributeStatistics `json:"attributes,omitempty"`
}

// AttributeStatistics counts occurrences of one attribute value at a node.
type AttributeStatistics struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Occurrence int64  `json:"occurrence"`
}

// ErrorCounter is the per-error-type occurrence count for a task. Error
// types are identified by a UUID assigned on first sighting of the type.
type ErrorCounter struct {
	TaskID    int64     `json:"task_id"`
	ErrorType uuid.UUID `json:"error_type"`
	Message   string    `json:"message"`
	Count     int64     `json:"count"`
}

// ErrorNotification is one recorded occurrence of an error type, keeping the
// failing resource and any extra detail for diagnosis.
type ErrorNotification struct {
	TaskID         int64     `json:"task_id"`
	ErrorType      uuid.UUID `json:"error_type"`
	ErrorMessage   string    `json:"error_message"`
	Resource       string    `json:"resource"`
	AdditionalInfo string    `json:"additional_info"`
}
