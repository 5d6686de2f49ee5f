package service

import "errors"

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrInvalidToolCall = errors.New("unknown tool")
	ErrToolDisabled    = errors.New("tool is not enabled for this agent")
)
