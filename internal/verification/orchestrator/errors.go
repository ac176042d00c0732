package orchestrator

import (
	"errors"
	"net/http"

	"github.com/tise-genene/verifyreceipt/internal/verification/upstream"
	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
)

// ErrAutomationFailure hides upstream scraper breakage from callers.
var ErrAutomationFailure = dErrors.New(dErrors.CodeUnavailable, "Verification service is temporarily unavailable. Please try again later.")

// mapUpstreamError translates an upstream client failure into a caller-facing error.
func mapUpstreamError(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de
	}

	switch {
	case errors.Is(err, upstream.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "Upstream verification timed out. Please try again.")
	case errors.Is(err, upstream.ErrConnection):
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "Cannot reach upstream verification service. Please try again.")
	}

	var ue *upstream.Error
	if errors.As(err, &ue) {
		switch {
		case IsAutomationFailure(ue.Body):
			return ErrAutomationFailure
		case ue.StatusCode == http.StatusNotFound || IsNotFound(ue.Body):
			return dErrors.Wrap(err, dErrors.CodeNotFound, "Receipt not found").WithDetail(ue.Body)
		default:
			return dErrors.Wrap(err, dErrors.CodeBadGateway, "Upstream verification failed").WithDetail(ue.Body)
		}
	}

	return dErrors.Wrap(err, dErrors.CodeInternal, "verification failed")
}
