package discovery

import "errors"

// Sentinel errors for the discovery service layer.
var (
	ErrRunInProgress = errors.New("discovery run already in progress")
	ErrNoRunYet      = errors.New("no discovery run has completed")
)
