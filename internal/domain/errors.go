package domain

import "errors"

var (
	// ErrCorpusNotSupported signals a corpus id outside the registry snapshot.
	ErrCorpusNotSupported = errors.New("unsupported corpus")
	// ErrInvalidThreshold signals a threshold outside [0,1].
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrInvalidLimit signals a result cap outside [1,100].
	ErrInvalidLimit = errors.New("invalid result limit")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStoreUnavailable signals that the similarity store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
