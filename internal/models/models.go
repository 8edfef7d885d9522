package models

import "time"

// ConversationState is the single current state of one call. Transitions are
// total: every state has a defined successor for every input class.
type ConversationState string

const (
	StateInitial                 ConversationState = "initial"
	StateNewCallerGreeting       ConversationState = "new_caller_greeting"
	StateReturningCallerGreeting ConversationState = "returning_caller_greeting"
	StateAskBusinessName         ConversationState = "ask_business_name"
	StateExtractProjectDetails   ConversationState = "extract_project_details"
	StateFollowUpQuestions       ConversationState = "follow_up_questions"
	StateAskContactMethod        ConversationState = "ask_contact_method"
	StateConfirmContactMethod    ConversationState = "confirm_contact_method"
	StateComplete                ConversationState = "complete"
	StateError                   ConversationState = "error"
)

type Action string

const (
	ActionGenerateNotification Action = "generate_notification"
	ActionUpdateDirectory      Action = "update_caller_directory"
	ActionEndCall              Action = "end_call"
	ActionLogError             Action = "log_error"
	ActionRestartConversation  Action = "restart_conversation"
)

// CallTurn is one inbound webhook interaction, immutable once received.
type CallTurn struct {
	CallSid    string `json:"call_sid"`
	From       string `json:"from"`
	Transcript string `json:"transcript"`
	TurnIndex  int    `json:"turn_index"`
}

// ExtractedFields is the untrusted structured mapping produced by the
// extraction collaborator. Empty string means absent.
type ExtractedFields struct {
	BusinessName   string `json:"business_name,omitempty"`
	ProjectType    string `json:"project_type,omitempty"`
	ProjectAddress string `json:"project_address,omitempty"`
	Scope          string `json:"scope,omitempty"`
	Budget         string `json:"budget,omitempty"`
	PaymentTerms   string `json:"payment_terms,omitempty"`
	MaterialsBy    string `json:"materials_by,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	ContactMethod  string `json:"preferred_contact_method,omitempty"`
	ContactEmail   string `json:"contact_email,omitempty"`
}

// CallerRecord is one directory entry. The external store owns the
// authoritative copy; the core reads snapshots and proposes mutations.
// Dates use the directory's YYYY-MM-DD form.
type CallerRecord struct {
	Phone         string `json:"phone_number"`
	BusinessName  string `json:"business_name"`
	ContactEmail  string `json:"contact_email"`
	ContactMethod string `json:"contact_method"`
	LicenseNumber string `json:"license_number,omitempty"`
	IsRepeat      bool   `json:"is_repeat"`
	LastContact   string `json:"last_contact_date"`
	CreatedDate   string `json:"created_date"`
	CallCount     int    `json:"call_count"`
}

type MatchType string

const (
	MatchNone             MatchType = "no_match"
	MatchPhoneExact       MatchType = "phone_exact"
	MatchBusinessIdentity MatchType = "business_identity"
)

// MatchResult is the outcome of caller matching. PreviousPhone carries the
// stored phone before a Tier 2 phone migration so the update intent can
// still address the existing row.
type MatchResult struct {
	Type          MatchType     `json:"match_type"`
	Confidence    float64       `json:"confidence"`
	Caller        *CallerRecord `json:"caller,omitempty"`
	PreviousPhone string        `json:"previous_phone,omitempty"`
	IsReturning   bool          `json:"is_returning"`
}

// HistoryEntry is one past turn, retained for debugging only; transition
// logic never reads it back.
type HistoryEntry struct {
	State      ConversationState `json:"state"`
	Transcript string            `json:"transcript"`
	Fields     ExtractedFields   `json:"fields"`
	Timestamp  time.Time         `json:"timestamp"`
}

// TurnState is the per-call state bundle threaded through every turn and
// persisted between webhooks. PreviousPhone survives from the match result so
// the completion-turn directory update can still address a row whose phone
// was migrated during matching.
type TurnState struct {
	CallSid       string            `json:"call_sid"`
	State         ConversationState `json:"state"`
	TurnCount     int               `json:"turn_count"`
	History       []HistoryEntry    `json:"history"`
	Fields        ExtractedFields   `json:"fields"`
	Caller        *CallerRecord     `json:"caller,omitempty"`
	IsReturning   bool              `json:"is_returning"`
	MatchType     MatchType         `json:"match_type,omitempty"`
	PreviousPhone string            `json:"previous_phone,omitempty"`
}

type MutationOp string

const (
	MutationInsert MutationOp = "INSERT"
	MutationUpdate MutationOp = "UPDATE"
)

// MutationIntent describes exactly one insert-or-update against the caller
// directory. It is a description of the operation, not the operation itself.
type MutationIntent struct {
	Op        MutationOp   `json:"operation"`
	SearchKey string       `json:"search_key,omitempty"`
	Record    CallerRecord `json:"record"`
	Reason    string       `json:"reason"`
}

const (
	ReasonCreateNewCaller         = "create_new_caller"
	ReasonIncrementCallCount      = "increment_call_count"
	ReasonUpdatePhoneAndIncrement = "update_phone_and_increment"
)
