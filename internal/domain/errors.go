package domain

import "errors"

// ErrInvalidCriterion indicates that a criterion definition is malformed.
var ErrInvalidCriterion = errors.New("invalid criterion")

// ErrUnknownCriterion indicates a score references a criterion that was not supplied.
var ErrUnknownCriterion = errors.New("unknown criterion")

// ErrInvalidPromptTemplate indicates that a prompt template failed validation.
var ErrInvalidPromptTemplate = errors.New("prompt template validation failed")

// ErrEmptyScores indicates that a scoring operation received no criterion scores.
var ErrEmptyScores = errors.New("no criterion scores supplied")

// ErrDimensionMismatch indicates two vectors of different lengths were compared.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")
