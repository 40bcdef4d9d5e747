package backend

import (
	"errors"
	"fmt"
)

// Kind categorizes generation failures
type Kind int

const (
	KindUnknown Kind = iota
	KindUnavailable
	KindTimeout
	KindCanceled
	KindModel
	KindMalformed
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindModel:
		return "model"
	case KindMalformed:
		return "malformed"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// GenerationError is returned when a backend cannot produce a response
type GenerationError struct {
	Kind    Kind
	Backend string
	// Detail is a short human-readable qualifier, safe to show to users
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("%s generation failed (%s)", e.Backend, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown
func KindOf(err error) Kind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindUnknown
}

// Describe turns a generation failure into a sentence for the user. Raw
// response bodies are never included.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		return "the model failed to produce a response."
	}

	name := genErr.Backend
	if name == "" {
		name = "model"
	}

	switch genErr.Kind {
	case KindUnavailable:
		return fmt.Sprintf("the %s server could not be reached. Is it running?", name)
	case KindTimeout:
		return "the model took too long to respond."
	case KindCanceled:
		return "the request was canceled."
	case KindModel:
		if genErr.Detail != "" {
			return fmt.Sprintf("the model reported an error (%s).", genErr.Detail)
		}
		return "the model reported an error."
	case KindMalformed:
		return "the model returned a response that could not be read."
	case KindConfig:
		if genErr.Detail != "" {
			return fmt.Sprintf("the %s backend is not configured correctly: %s.", name, genErr.Detail)
		}
		return fmt.Sprintf("the %s backend is not configured correctly.", name)
	default:
		return "the model failed to produce a response."
	}
}
