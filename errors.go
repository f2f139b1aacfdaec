package main

import "github.com/pkg/errors"

// ErrNotFound is returned when a record is not found in a collection.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when the request body is not a JSON object.
var ErrInvalidInput = errors.New("invalid JSON")

// ErrMissingFields is returned when a required field is absent or empty.
var ErrMissingFields = errors.New("missing required fields")

// ErrMissingID is returned when a mutation needs an identifier and the path has none.
var ErrMissingID = errors.New("id required")

// ErrInvalidID is returned when the identifier segment is not an integer.
var ErrInvalidID = errors.New("invalid id")

// ErrBodyTooLarge is returned when a request body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("request body too large")

// ErrBodyTimeout is returned when reading a request body hits the read deadline.
var ErrBodyTimeout = errors.New("request timeout")
