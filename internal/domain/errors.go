package domain

import "errors"

var (
	ErrInvalidFormat        = errors.New("invalid catalog format")
	ErrCatalogNotLoaded     = errors.New("catalog is not loaded")
	ErrCyclicCategoryGraph  = errors.New("category graph contains a cycle")
	ErrRemoteUpdateFailed   = errors.New("failed to update products")
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
	ErrInvalidStartTime     = errors.New("invalid start time")
	ErrCredentialMissing    = errors.New("API key is missing")
	ErrCredentialInvalid    = errors.New("API key is invalid")
	ErrChangesGroupNotFound = errors.New("changes group not found")
	ErrAutomationNotFound   = errors.New("automation not found")
)
