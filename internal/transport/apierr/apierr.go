// Package apierr maps domain errors to the wire error shape shared by the
// HTTP endpoint and the session transport. Both transports must reject and
// report identically, so the mapping lives in one place.
package apierr

import (
	"errors"
	"net/http"

	"github.com/openscripture/versevec/internal/domain"
)

// Payload is the wire error body.
type Payload struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

type mapping struct {
	sentinel error
	status   int
	code     string
}

var mappings = []mapping{
	{domain.ErrCorpusNotSupported, http.StatusBadRequest, "invalid_corpus"},
	{domain.ErrInvalidThreshold, http.StatusBadRequest, "invalid_threshold"},
	{domain.ErrInvalidLimit, http.StatusBadRequest, "invalid_limit"},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// FromError resolves err to an HTTP status and wire payload. Unrecognized
// errors map to 500 with a generic message so internals never leak.
func FromError(err error) (int, Payload) {
	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			return m.status, Payload{Code: m.code, Message: m.sentinel.Error()}
		}
	}
	return http.StatusInternalServerError, Payload{Code: "internal_error", Message: "internal error"}
}

// BadRequest builds the payload for input the decoder itself rejected.
func BadRequest(msg string) Payload {
	return Payload{Code: "bad_request", Message: msg}
}
