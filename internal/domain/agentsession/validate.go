package agentsession

import (
	"fmt"
	"regexp"
)

// MaxPhases is the maximum number of phase records ever completed (§6).
const MaxPhases = 12

// MaxCommandsHistory is the maximum deduplicated bootstrap command count (§6).
const MaxCommandsHistory = 10

// MaxImagesPerMessage is the largest image count a single user_suggestion
// control frame may carry (§6).
const MaxImagesPerMessage = 4

// MaxImageSizeBytes is the largest size, per image, a user_suggestion
// control frame may carry (§6).
const MaxImageSizeBytes = 5 * 1024 * 1024

var projectNameRE = regexp.MustCompile(`^[a-z0-9-_]{3,50}$`)

// ValidProjectName reports whether name satisfies the project-name
// invariant checked after Session Lifecycle.Initialize returns.
func ValidProjectName(name string) bool {
	return projectNameRE.MatchString(name)
}

// devStateTransitions is the allowed-transition table for DevState, the
// same shape as the teacher's run.Status transition validation: an edge
// list keyed by source state.
var devStateTransitions = map[DevState]map[DevState]bool{
	DevStateIdle: {
		DevStatePhaseGenerating: true,
	},
	DevStatePhaseGenerating: {
		DevStatePhaseImplementing: true,
	},
	DevStatePhaseImplementing: {
		DevStatePhaseImplementing: true, // loop across phases
		DevStateReviewing:         true,
	},
	DevStateReviewing: {
		DevStateFinalizing: true,
	},
	DevStateFinalizing: {
		DevStateIdle: true,
	},
}

// AllowedTransition reports whether moving currentDevState from "from" to
// "to" is a legal edge in the Phasic App Controller's state machine (§4.9).
func AllowedTransition(from, to DevState) bool {
	if from == to && from == DevStatePhaseImplementing {
		return true
	}
	edges, ok := devStateTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ValidateTransition returns an error naming the illegal edge, or nil.
func ValidateTransition(from, to DevState) error {
	if !AllowedTransition(from, to) {
		return fmt.Errorf("illegal devState transition: %s -> %s", from, to)
	}
	return nil
}
