package models

import "errors"

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventExists          = errors.New("event with this name already exists")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateExists       = errors.New("template with this name already exists")
)
