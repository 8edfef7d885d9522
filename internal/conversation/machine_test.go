package conversation

import (
	"fmt"
	"testing"

	"github.com/contractline/backend/internal/models"
)

func stateAt(s models.ConversationState) models.TurnState {
	return models.TurnState{CallSid: "CA-test", State: s}
}

func TestAdvanceInitialBranchesOnCallerType(t *testing.T) {
	res := Advance(stateAt(models.StateInitial), Input{IsReturning: true})
	if res.State.State != models.StateReturningCallerGreeting {
		t.Fatalf("returning caller: got %s", res.State.State)
	}
	res = Advance(stateAt(models.StateInitial), Input{})
	if res.State.State != models.StateNewCallerGreeting {
		t.Fatalf("new caller: got %s", res.State.State)
	}
}

func TestAdvanceNewCallerGreeting(t *testing.T) {
	in := Input{
		Transcript: "Hi, I'm John from ABC Construction",
		Fields:     models.ExtractedFields{BusinessName: "ABC Construction"},
	}
	res := Advance(stateAt(models.StateNewCallerGreeting), in)
	if res.State.State != models.StateExtractProjectDetails {
		t.Fatalf("speech+business must move to extraction, got %s", res.State.State)
	}

	res = Advance(stateAt(models.StateNewCallerGreeting), Input{Transcript: "uh hello"})
	if res.State.State != models.StateAskBusinessName {
		t.Fatalf("no business name must ask for it, got %s", res.State.State)
	}
}

func TestAdvanceReturningGreetingYesNoAmbiguous(t *testing.T) {
	cases := map[string]models.ConversationState{
		"Yes, that's right":  models.StateExtractProjectDetails,
		"No, different one":  models.StateAskBusinessName,
		"maybe, who is this": models.StateAskBusinessName,
		"":                   models.StateAskBusinessName,
	}
	for transcript, want := range cases {
		res := Advance(stateAt(models.StateReturningCallerGreeting), Input{Transcript: transcript, IsReturning: true})
		if res.State.State != want {
			t.Fatalf("transcript %q: got %s, want %s", transcript, res.State.State, want)
		}
	}
}

func TestAdvanceAskBusinessNameSelfLoop(t *testing.T) {
	res := Advance(stateAt(models.StateAskBusinessName), Input{})
	if res.State.State != models.StateAskBusinessName {
		t.Fatalf("expected self-loop, got %s", res.State.State)
	}
	if len(res.State.History) != 1 {
		t.Fatalf("self-loop must still append history, got %d entries", len(res.State.History))
	}

	// Business name known from an earlier turn counts even without speech.
	prev := stateAt(models.StateAskBusinessName)
	prev.Fields = models.ExtractedFields{BusinessName: "Acme"}
	res = Advance(prev, Input{})
	if res.State.State != models.StateExtractProjectDetails {
		t.Fatalf("known business name must advance, got %s", res.State.State)
	}
}

func TestAdvanceExtractProjectDetails(t *testing.T) {
	prev := stateAt(models.StateExtractProjectDetails)
	prev.Fields = models.ExtractedFields{ProjectType: "deck build", ProjectAddress: "123 Main", Budget: "$10,000"}
	res := Advance(prev, Input{})
	if res.State.State != models.StateAskContactMethod {
		t.Fatalf("viable details must move to contact step, got %s", res.State.State)
	}

	prev.Fields.Budget = ""
	res = Advance(prev, Input{})
	if res.State.State != models.StateFollowUpQuestions {
		t.Fatalf("missing budget must enter follow-ups, got %s", res.State.State)
	}
}

func TestAdvanceFollowUpLoop(t *testing.T) {
	res := Advance(stateAt(models.StateFollowUpQuestions), Input{FollowUpPending: true})
	if res.State.State != models.StateFollowUpQuestions {
		t.Fatalf("pending follow-up must loop, got %s", res.State.State)
	}
	res = Advance(stateAt(models.StateFollowUpQuestions), Input{})
	if res.State.State != models.StateAskContactMethod {
		t.Fatalf("no pending follow-up must move on, got %s", res.State.State)
	}
}

func TestAdvanceContactMethodAsymmetry(t *testing.T) {
	// ask_contact_method ignores the transcript entirely for new callers.
	res := Advance(stateAt(models.StateAskContactMethod), Input{Transcript: "yes please"})
	if res.State.State != models.StateAskContactMethod {
		t.Fatalf("new caller self-loop must ignore yes/no, got %s", res.State.State)
	}
	res = Advance(stateAt(models.StateAskContactMethod), Input{IsReturning: true})
	if res.State.State != models.StateConfirmContactMethod {
		t.Fatalf("returning caller must confirm, got %s", res.State.State)
	}

	// confirm_contact_method does run the yes/no test.
	res = Advance(stateAt(models.StateConfirmContactMethod), Input{Transcript: "yes", IsReturning: true})
	if res.State.State != models.StateComplete {
		t.Fatalf("affirmation must complete, got %s", res.State.State)
	}
	res = Advance(stateAt(models.StateConfirmContactMethod), Input{Transcript: "no", IsReturning: true})
	if res.State.State != models.StateAskContactMethod {
		t.Fatalf("denial must re-ask, got %s", res.State.State)
	}
	res = Advance(stateAt(models.StateConfirmContactMethod), Input{Transcript: "hmm", IsReturning: true})
	if res.State.State != models.StateAskContactMethod {
		t.Fatalf("ambiguity folds into re-ask, got %s", res.State.State)
	}
}

func TestAdvanceCompleteEmitsActions(t *testing.T) {
	res := Advance(stateAt(models.StateComplete), Input{})
	if res.State.State != models.StateComplete {
		t.Fatalf("complete is terminal, got %s", res.State.State)
	}
	want := []models.Action{models.ActionGenerateNotification, models.ActionUpdateDirectory, models.ActionEndCall}
	if len(res.Actions) != len(want) {
		t.Fatalf("expected %v, got %v", want, res.Actions)
	}
	for i := range want {
		if res.Actions[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, res.Actions)
		}
	}
	if res.ShouldContinue {
		t.Fatalf("complete must not continue")
	}
}

func TestAdvanceErrorAndUnrecognizedState(t *testing.T) {
	res := Advance(stateAt(models.StateError), Input{})
	if res.State.State != models.StateError || len(res.Actions) != 2 {
		t.Fatalf("error must stay terminal with recovery actions, got %+v", res)
	}

	res = Advance(stateAt("definitely_not_a_state"), Input{})
	if res.State.State != models.StateError {
		t.Fatalf("unrecognized state must route to error, got %s", res.State.State)
	}
}

func TestAdvanceHistoryBounded(t *testing.T) {
	st := stateAt(models.StateAskBusinessName)
	for i := 0; i < 12 && st.State != models.StateComplete; i++ {
		res := Advance(st, Input{Transcript: fmt.Sprintf("turn %d", i)})
		st = res.State
	}
	if len(st.History) != MaxHistory {
		t.Fatalf("history must cap at %d, got %d", MaxHistory, len(st.History))
	}
	// After 12 turns the oldest 2 are gone; the window starts at turn 2.
	if st.History[0].Transcript != "turn 2" {
		t.Fatalf("oldest entries must drop first, window starts at %q", st.History[0].Transcript)
	}
	if st.History[MaxHistory-1].Transcript != "turn 11" {
		t.Fatalf("newest entry must be last, got %q", st.History[MaxHistory-1].Transcript)
	}
}

func TestAdvanceTurnLimitForcesComplete(t *testing.T) {
	st := stateAt(models.StateFollowUpQuestions)
	var last Result
	for i := 0; i < MaxTurns; i++ {
		last = Advance(st, Input{FollowUpPending: true})
		st = last.State
	}
	if st.State != models.StateComplete {
		t.Fatalf("turn %d must force complete, got %s", MaxTurns, st.State)
	}
	if !last.ForcedComplete {
		t.Fatalf("breaker must be reported")
	}
	found := map[models.Action]bool{}
	for _, a := range last.Actions {
		found[a] = true
	}
	if !found[models.ActionGenerateNotification] || !found[models.ActionEndCall] {
		t.Fatalf("breaker must emit notification and end_call, got %v", last.Actions)
	}
	if last.ShouldContinue {
		t.Fatalf("forced completion must not continue")
	}
}

func TestMergeFieldsMonotonic(t *testing.T) {
	turn1 := MergeFields(models.ExtractedFields{}, models.ExtractedFields{BusinessName: "Acme"})
	turn2 := MergeFields(turn1, models.ExtractedFields{Budget: "$5,000"})
	if turn2.BusinessName != "Acme" {
		t.Fatalf("absent later value must not erase known one, got %q", turn2.BusinessName)
	}
	if turn2.Budget != "$5,000" {
		t.Fatalf("new value must land, got %q", turn2.Budget)
	}

	turn3 := MergeFields(turn2, models.ExtractedFields{BusinessName: "Acme Builders LLC", Budget: "   "})
	if turn3.BusinessName != "Acme Builders LLC" {
		t.Fatalf("later non-empty value must overwrite, got %q", turn3.BusinessName)
	}
	if turn3.Budget != "$5,000" {
		t.Fatalf("whitespace-only must not erase, got %q", turn3.Budget)
	}
}

func TestAdvanceHappyPathOnePass(t *testing.T) {
	fields := models.ExtractedFields{
		BusinessName:   "ABC Construction",
		ProjectType:    "kitchen remodel",
		ProjectAddress: "123 Main Street",
		Budget:         "$25,000",
		PaymentTerms:   "50% upfront 50% on completion",
		StartDate:      "next month",
		ContactMethod:  "email",
	}
	transcript := "Hi, I'm John from ABC Construction. Kitchen remodel at 123 Main Street, budget $25,000, 50% upfront 50% on completion, starting next month, email me"

	st := stateAt(models.StateInitial)
	var visited []models.ConversationState
	for i := 0; i < 3; i++ {
		res := Advance(st, Input{Transcript: transcript, Fields: fields})
		st = res.State
		visited = append(visited, st.State)
	}
	want := []models.ConversationState{
		models.StateNewCallerGreeting,
		models.StateExtractProjectDetails,
		models.StateAskContactMethod,
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("happy path step %d: got %s, want %s", i, visited[i], want[i])
		}
	}
}
