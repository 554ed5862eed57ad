package models

// Requests for the HTTP surface.

type StateRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=16"`
}

type CycleRequest struct {
	// Async starts the cycle in the background and returns immediately.
	Async bool `query:"async" json:"async"`
}
