package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TopicStatus is persisted as a small integer code.
type TopicStatus int

const (
	StatusActive TopicStatus = iota
	StatusAnswered
)

func (s TopicStatus) Valid() bool {
	return s == StatusActive || s == StatusAnswered
}

func (s TopicStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusAnswered:
		return "ANSWERED"
	default:
		return fmt.Sprintf("TopicStatus(%d)", int(s))
	}
}

// ParseTopicStatus accepts the names used in backups and the API.
func ParseTopicStatus(s string) (TopicStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACTIVE":
		return StatusActive, nil
	case "ANSWERED":
		return StatusAnswered, nil
	}
	return StatusActive, fmt.Errorf("unknown topic status %q", s)
}

func (s TopicStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TopicStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseTopicStatus(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
