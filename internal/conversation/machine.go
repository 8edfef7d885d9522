package conversation

import (
	"strings"
	"time"

	"github.com/contractline/backend/internal/extract"
	"github.com/contractline/backend/internal/models"
)

const (
	// MaxTurns is the hard circuit breaker against runaway calls.
	MaxTurns = 15
	// MaxHistory bounds the retained per-call history, oldest dropped first.
	MaxHistory = 10
)

// Input is everything one turn contributes to a transition decision.
type Input struct {
	Transcript  string
	Fields      models.ExtractedFields // this turn's extraction, pre-merge
	IsReturning bool
	// FollowUpPending reports whether the selector still has a question
	// queued against the accumulated fields.
	FollowUpPending bool
}

// Result is one computed transition: the updated state bundle plus the
// side-effect actions the caller must execute.
type Result struct {
	State          models.TurnState
	PreviousState  models.ConversationState
	Actions        []models.Action
	ShouldContinue bool
	ForcedComplete bool
}

// Advance computes the next conversation state for one turn. It is pure: all
// prior state arrives in prev and the updated bundle is returned, never
// stored. Every input maps to a defined next state; nothing errors.
func Advance(prev models.TurnState, in Input) Result {
	hasSpeech := strings.TrimSpace(in.Transcript) != ""
	accumulated := MergeFields(prev.Fields, in.Fields)
	affirmed := containsWord(in.Transcript, "yes")
	denied := containsWord(in.Transcript, "no")

	var next models.ConversationState
	var actions []models.Action

	switch prev.State {
	case models.StateInitial, "":
		if in.IsReturning {
			next = models.StateReturningCallerGreeting
		} else {
			next = models.StateNewCallerGreeting
		}

	case models.StateNewCallerGreeting:
		if hasSpeech && extract.Known(accumulated, extract.FieldBusinessName) {
			next = models.StateExtractProjectDetails
		} else {
			next = models.StateAskBusinessName
		}

	case models.StateReturningCallerGreeting:
		switch {
		case hasSpeech && affirmed:
			next = models.StateExtractProjectDetails
		default:
			// Denial and ambiguity both re-verify the business.
			next = models.StateAskBusinessName
		}

	case models.StateAskBusinessName:
		if extract.Known(accumulated, extract.FieldBusinessName) {
			next = models.StateExtractProjectDetails
		} else {
			next = models.StateAskBusinessName
		}

	case models.StateExtractProjectDetails:
		if extract.MinimumViable(accumulated) {
			next = models.StateAskContactMethod
		} else {
			next = models.StateFollowUpQuestions
		}

	case models.StateFollowUpQuestions:
		if in.FollowUpPending {
			next = models.StateFollowUpQuestions
		} else {
			next = models.StateAskContactMethod
		}

	case models.StateAskContactMethod:
		// No transcript test here: new callers loop until extraction
		// produces a contact method. confirm_contact_method below does run
		// the yes/no test; the asymmetry is deliberate.
		if in.IsReturning {
			next = models.StateConfirmContactMethod
		} else {
			next = models.StateAskContactMethod
		}

	case models.StateConfirmContactMethod:
		if hasSpeech && affirmed {
			next = models.StateComplete
		} else if hasSpeech && denied {
			next = models.StateAskContactMethod
		} else {
			next = models.StateAskContactMethod
		}

	case models.StateComplete:
		next = models.StateComplete
		actions = append(actions,
			models.ActionGenerateNotification,
			models.ActionUpdateDirectory,
			models.ActionEndCall,
		)

	case models.StateError:
		next = models.StateError
		actions = append(actions, models.ActionLogError, models.ActionRestartConversation)

	default:
		next = models.StateError
	}

	history := appendHistory(prev.History, models.HistoryEntry{
		State:      prev.State,
		Transcript: in.Transcript,
		Fields:     in.Fields,
		Timestamp:  time.Now().UTC(),
	})

	turnCount := prev.TurnCount + 1
	forced := turnCount >= MaxTurns
	if forced {
		next = models.StateComplete
		actions = append(actions, models.ActionGenerateNotification, models.ActionEndCall)
	}

	state := prev
	state.State = next
	state.TurnCount = turnCount
	state.History = history
	state.Fields = accumulated
	state.IsReturning = in.IsReturning || prev.IsReturning

	return Result{
		State:          state,
		PreviousState:  prev.State,
		Actions:        actions,
		ShouldContinue: next != models.StateComplete && next != models.StateError,
		ForcedComplete: forced,
	}
}

// containsWord is the affirmation test: a case-insensitive substring check,
// not intent classification.
func containsWord(transcript, word string) bool {
	return strings.Contains(strings.ToLower(transcript), word)
}

func appendHistory(history []models.HistoryEntry, entry models.HistoryEntry) []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(history), len(history)+1)
	copy(out, history)
	out = append(out, entry)
	if len(out) > MaxHistory {
		out = out[len(out)-MaxHistory:]
	}
	return out
}

// MergeFields folds one turn's extraction into the running accumulation.
// Later non-empty values overwrite earlier ones; absent values never erase
// what is already known.
func MergeFields(prev, incoming models.ExtractedFields) models.ExtractedFields {
	merged := prev
	overlay(&merged.BusinessName, incoming.BusinessName)
	overlay(&merged.ProjectType, incoming.ProjectType)
	overlay(&merged.ProjectAddress, incoming.ProjectAddress)
	overlay(&merged.Scope, incoming.Scope)
	overlay(&merged.Budget, incoming.Budget)
	overlay(&merged.PaymentTerms, incoming.PaymentTerms)
	overlay(&merged.MaterialsBy, incoming.MaterialsBy)
	overlay(&merged.LicenseNumber, incoming.LicenseNumber)
	overlay(&merged.StartDate, incoming.StartDate)
	overlay(&merged.EndDate, incoming.EndDate)
	overlay(&merged.ContactMethod, incoming.ContactMethod)
	return merged
}

func overlay(dst *string, val string) {
	if strings.TrimSpace(val) != "" {
		*dst = val
	}
}
