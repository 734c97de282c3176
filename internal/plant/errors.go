package plant

import "errors"

// Domain errors for the plant package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, plant.ErrInvalidAnalysisType) {
//	    // reject the request
//	}
var (
	// ErrInvalidAnalysisType is returned for an unrecognised analysis type.
	ErrInvalidAnalysisType = errors.New("plant: invalid analysis type")

	// ErrHistoryNotFound is returned when a history record ID does not exist.
	ErrHistoryNotFound = errors.New("plant: history record not found")

	// ErrAnalysisFailed is returned when the inference provider rejects
	// or fails an analysis request.
	ErrAnalysisFailed = errors.New("plant: analysis failed")
)
