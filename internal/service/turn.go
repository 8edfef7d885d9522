package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/contractline/backend/internal/compliance"
	"github.com/contractline/backend/internal/conversation"
	"github.com/contractline/backend/internal/db"
	"github.com/contractline/backend/internal/directory"
	"github.com/contractline/backend/internal/extract"
	"github.com/contractline/backend/internal/models"
	"github.com/contractline/backend/internal/notify"
	"github.com/contractline/backend/internal/phone"
	"github.com/contractline/backend/internal/retry"
)

// Store is the persistence surface one turn needs.
type Store interface {
	GetCallState(ctx context.Context, callSid string) (models.TurnState, error)
	SaveCallState(ctx context.Context, st models.TurnState) error
	LookupCandidates(ctx context.Context, variants []string, includeAll bool) ([]models.CallerRecord, error)
	ApplyMutation(ctx context.Context, intent models.MutationIntent) error
}

type TurnService struct {
	Store     Store
	Extractor extract.Extractor
	Retry     retry.Config
	Logger    zerolog.Logger
	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

type TurnRequest struct {
	CallSid    string
	From       string
	Transcript string
}

type TurnResponse struct {
	CallSid        string                   `json:"call_sid"`
	State          models.ConversationState `json:"conversation_state"`
	PreviousState  models.ConversationState `json:"previous_state"`
	Prompt         string                   `json:"prompt"`
	ShouldContinue bool                     `json:"should_continue"`
	TurnCount      int                      `json:"turn_count"`
	IsReturning    bool                     `json:"is_returning"`
	MatchType      models.MatchType         `json:"match_type"`
	Actions        []models.Action          `json:"actions,omitempty"`
	MissingFields  []extract.Field          `json:"missing_fields,omitempty"`
	Fields         models.ExtractedFields   `json:"fields"`
	Compliance     *compliance.Result       `json:"compliance,omitempty"`
	Notification   *notify.Notification     `json:"notification,omitempty"`
	ExtractionMs   int64                    `json:"extraction_ms"`
	ForcedComplete bool                     `json:"forced_complete,omitempty"`
}

// ProcessTurn runs one webhook interaction end to end: normalize the caller's
// number, restore per-call state, extract fields from speech, match against
// the directory, advance the state machine, execute its actions and persist.
func (s *TurnService) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	normalized, err := phone.Normalize(req.From)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("caller %q: %w", req.From, err)
	}

	st, err := s.Store.GetCallState(ctx, req.CallSid)
	if errors.Is(err, db.ErrNotFound) {
		st = models.TurnState{CallSid: req.CallSid, State: models.StateInitial}
	} else if err != nil {
		return TurnResponse{}, fmt.Errorf("load call state: %w", err)
	}

	turnFields, extractionMs := s.extractFields(ctx, req.Transcript)
	merged := conversation.MergeFields(st.Fields, turnFields)

	returningThisTurn := st.IsReturning
	if st.Caller == nil {
		match := s.matchCaller(ctx, normalized, merged)
		if match.Caller != nil {
			st.Caller = match.Caller
			st.MatchType = match.Type
			st.PreviousPhone = match.PreviousPhone
			returningThisTurn = true
			s.Logger.Info().
				Str("call_sid", req.CallSid).
				Str("match_type", string(match.Type)).
				Float64("confidence", match.Confidence).
				Msg("caller matched")
		} else {
			st.MatchType = models.MatchNone
		}
	}

	followUp := conversation.NextQuestion(extract.Missing(merged), req.Transcript, merged)

	res := conversation.Advance(st, conversation.Input{
		Transcript:      req.Transcript,
		Fields:          turnFields,
		IsReturning:     returningThisTurn,
		FollowUpPending: followUp.HasFollowUp,
	})
	st = res.State

	resp := TurnResponse{
		CallSid:        st.CallSid,
		State:          st.State,
		PreviousState:  res.PreviousState,
		ShouldContinue: res.ShouldContinue,
		TurnCount:      st.TurnCount,
		IsReturning:    st.IsReturning,
		MatchType:      st.MatchType,
		Actions:        res.Actions,
		MissingFields:  extract.Missing(st.Fields),
		Fields:         st.Fields,
		ExtractionMs:   extractionMs,
		ForcedComplete: res.ForcedComplete,
	}

	for _, action := range res.Actions {
		switch action {
		case models.ActionUpdateDirectory:
			s.updateDirectory(ctx, &st, normalized)
		case models.ActionGenerateNotification:
			comp := compliance.Check(st.Fields)
			n := notify.Build(st.Fields, st.Caller, comp.Warnings, st.CallSid, normalized, s.now())
			resp.Compliance = &comp
			resp.Notification = &n
			s.Logger.Info().
				Str("call_sid", st.CallSid).
				Str("compliance_status", comp.Status).
				Int("compliance_score", comp.Score).
				Str("email_subject", n.EmailSubject).
				Msg("notification generated")
		case models.ActionEndCall:
			s.Logger.Info().Str("call_sid", st.CallSid).Int("turns", st.TurnCount).Msg("call ended")
		case models.ActionLogError:
			s.Logger.Error().Str("call_sid", st.CallSid).Msg("conversation entered error state")
		case models.ActionRestartConversation:
			st = models.TurnState{CallSid: st.CallSid, State: models.StateInitial}
			resp.State = st.State
			resp.ShouldContinue = true
		}
	}

	resp.Prompt = s.promptFor(st, res, followUp)

	if err := s.Store.SaveCallState(ctx, st); err != nil {
		return TurnResponse{}, fmt.Errorf("save call state: %w", err)
	}
	return resp, nil
}

// extractFields calls the extraction collaborator with retries. Extraction
// failure degrades to an empty snapshot; the machine keeps looping and asks
// again rather than failing the call.
func (s *TurnService) extractFields(ctx context.Context, transcript string) (models.ExtractedFields, int64) {
	if strings.TrimSpace(transcript) == "" {
		return models.ExtractedFields{}, 0
	}

	var fields models.ExtractedFields
	var latency int64
	attempts, err := retry.Do(ctx, s.Retry, func(ctx context.Context) error {
		var callErr error
		fields, latency, callErr = s.Extractor.ExtractFields(ctx, transcript)
		return callErr
	})
	if err != nil {
		s.Logger.Warn().Err(err).Int("attempts", attempts).Msg("field extraction failed")
		return models.ExtractedFields{}, latency
	}
	return fields, latency
}

// matchCaller runs the two-tier directory match. The identity tier needs the
// whole directory, so the candidate lookup widens only once two secondary
// signals are on the table.
func (s *TurnService) matchCaller(ctx context.Context, normalized string, fields models.ExtractedFields) models.MatchResult {
	signals := directory.FromFields(fields)
	includeAll := signals.Count() >= 2

	candidates, err := s.Store.LookupCandidates(ctx, phone.Variants(normalized), includeAll)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("directory lookup failed, treating caller as new")
		return models.MatchResult{Type: models.MatchNone}
	}
	return directory.Match(normalized, signals, candidates)
}

func (s *TurnService) updateDirectory(ctx context.Context, st *models.TurnState, normalized string) {
	match := models.MatchResult{
		Type:          st.MatchType,
		Caller:        st.Caller,
		PreviousPhone: st.PreviousPhone,
	}
	intent := directory.PlanMutation(match, st.Fields, normalized, s.now().Format("2006-01-02"))
	if err := s.Store.ApplyMutation(ctx, intent); err != nil {
		s.Logger.Error().Err(err).
			Str("call_sid", st.CallSid).
			Str("operation", string(intent.Op)).
			Str("reason", intent.Reason).
			Msg("directory mutation failed")
		return
	}
	s.Logger.Info().
		Str("call_sid", st.CallSid).
		Str("operation", string(intent.Op)).
		Str("reason", intent.Reason).
		Msg("directory updated")
}

// promptFor picks the next spoken line for the state the call landed in.
func (s *TurnService) promptFor(st models.TurnState, res conversation.Result, followUp conversation.FollowUp) string {
	switch st.State {
	case models.StateNewCallerGreeting:
		return "Hi! I'm here to help you generate a construction contract. What's the name of your business?"
	case models.StateReturningCallerGreeting:
		if st.Caller != nil && st.Caller.BusinessName != "" {
			return fmt.Sprintf("Welcome back! Should we still send this to %s?", st.Caller.BusinessName)
		}
		return "Welcome back! Is this for the same business as last time?"
	case models.StateAskBusinessName:
		return "What's the name of your business?"
	case models.StateExtractProjectDetails:
		return "Tell me about your project: what kind of work, where, and what's the budget?"
	case models.StateFollowUpQuestions:
		if followUp.HasFollowUp {
			return followUp.Question
		}
		return "Anything else I should know about the project?"
	case models.StateAskContactMethod:
		return "What's the best way to get the contract to you — text or email?"
	case models.StateConfirmContactMethod:
		if st.Caller != nil && st.Caller.ContactMethod != "" {
			return fmt.Sprintf("Still OK to send the contract to you by %s?", st.Caller.ContactMethod)
		}
		return "Still OK to send the contract the same way as last time?"
	case models.StateComplete:
		project := st.Fields.ProjectType
		if project == "" {
			project = "construction"
		}
		return fmt.Sprintf("Perfect! I've got all the details for your %s project. I'll generate the contract and send it to you right away. Thanks for calling!", project)
	case models.StateError:
		return "I'm having trouble processing that. Let me start over."
	}
	return "I'm having trouble processing that. Let me start over."
}

func (s *TurnService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
