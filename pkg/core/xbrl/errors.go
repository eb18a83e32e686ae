package xbrl

import "errors"

var (
	// ErrNoUSGAAPFacts means the payload has no (or an empty) facts.us-gaap section.
	ErrNoUSGAAPFacts = errors.New("no us-gaap facts in payload")
	// ErrMalformedPayload means the payload could not be decoded into the company facts shape.
	ErrMalformedPayload = errors.New("malformed company facts payload")
	// ErrInvalidTaxonomy is returned when concept definitions fail validation.
	ErrInvalidTaxonomy = errors.New("invalid taxonomy")
)
