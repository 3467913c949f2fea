package engine

import (
	"errors"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// Sentinel errors returned by the codec. Callers match them with errors.Is;
// the returned errors usually wrap them with the offending value.
var (
	ErrCityNotFound    = errors.New(config.ErrCityNotFound)
	ErrOutOfDomain     = errors.New(config.ErrOutOfDomain)
	ErrBodyLength      = errors.New(config.ErrBodyLength)
	ErrInvalidSex      = errors.New(config.ErrInvalidSex)
	ErrInvalidCityCode = errors.New(config.ErrInvalidCityCode)
	ErrValidation      = errors.New(config.ErrValidation)
	ErrUpstreamStatus  = errors.New(config.ErrUpstreamStatus)
)
