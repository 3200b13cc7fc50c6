package brain

import (
	"context"
	"fmt"

	"github.com/menycars/copiloto/internal/models"
)

// LeadAction is what the brain wants done with the lead record.
type LeadAction string

const (
	LeadCreate LeadAction = "create"
	LeadUpdate LeadAction = "update"
	LeadScore  LeadAction = "score"
	LeadNone   LeadAction = "none"
)

type PipelineStage string

const (
	StageNew         PipelineStage = "new"
	StageContacted   PipelineStage = "contacted"
	StageNegotiating PipelineStage = "negotiating"
	StageClosed      PipelineStage = "closed"
	StageLost        PipelineStage = "lost"
)

type Intent string

const (
	IntentExploration   Intent = "exploration"
	IntentInformational Intent = "informational"
	IntentNegotiation   Intent = "negotiation"
	IntentAppraisal     Intent = "appraisal"
	IntentAppointment   Intent = "appointment"
	IntentClosing       Intent = "closing"
	IntentOther         Intent = "other"
)

// AppAction selects the side effect the dispatcher executes for a turn.
type AppAction string

const (
	ActionReplyOnly         AppAction = "reply_only"
	ActionOpenCalculator    AppAction = "open_calculator"
	ActionSendSpecSheet     AppAction = "send_spec_sheet"
	ActionCreateTask        AppAction = "create_task"
	ActionCreateNote        AppAction = "create_note"
	ActionSendAppraisalLink AppAction = "send_appraisal_link"
	ActionSendFullCatalog   AppAction = "send_full_catalog"
)

type ExtractedFields struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// Decision is the brain's structured output for one coalesced turn. It
// is consumed entirely within the dispatch that requested it; only its
// side effects persist.
type Decision struct {
	LeadAction             LeadAction      `json:"lead_action"`
	ExtractedFields        ExtractedFields `json:"extracted_fields"`
	PriorityScore          int             `json:"priority_score"`
	PipelineStage          PipelineStage   `json:"pipeline_stage"`
	DetectedIntent         Intent          `json:"detected_intent"`
	ReferencedInventoryIDs []string        `json:"referenced_inventory_ids"`
	ReplyText              string          `json:"reply_text"`
	ReplyMediaRefs         []string        `json:"reply_media_refs"`
	SuggestedAction        AppAction       `json:"suggested_app_action"`
	Reasoning              string          `json:"reasoning"`
}

// Validate rejects any value outside the closed enums. The model output
// is untrusted; an unknown tag fails the whole dispatch rather than
// flowing through as a no-op string.
func (d *Decision) Validate() error {
	switch d.LeadAction {
	case LeadCreate, LeadUpdate, LeadScore, LeadNone:
	default:
		return fmt.Errorf("unknown lead_action %q", d.LeadAction)
	}
	switch d.PipelineStage {
	case StageNew, StageContacted, StageNegotiating, StageClosed, StageLost:
	default:
		return fmt.Errorf("unknown pipeline_stage %q", d.PipelineStage)
	}
	switch d.DetectedIntent {
	case IntentExploration, IntentInformational, IntentNegotiation,
		IntentAppraisal, IntentAppointment, IntentClosing, IntentOther:
	default:
		return fmt.Errorf("unknown detected_intent %q", d.DetectedIntent)
	}
	switch d.SuggestedAction {
	case ActionReplyOnly, ActionOpenCalculator, ActionSendSpecSheet,
		ActionCreateTask, ActionCreateNote, ActionSendAppraisalLink,
		ActionSendFullCatalog:
	default:
		return fmt.Errorf("unknown suggested_app_action %q", d.SuggestedAction)
	}
	if d.PriorityScore < 0 || d.PriorityScore > 100 {
		return fmt.Errorf("priority_score %d out of range", d.PriorityScore)
	}
	if d.ReplyText == "" {
		return fmt.Errorf("empty reply_text")
	}
	return nil
}

// VehicleSummary is the bounded inventory view handed to the brain.
type VehicleSummary struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Year        int      `json:"year"`
	Price       float64  `json:"price"`
	URL         string   `json:"url,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

// TurnInput is the full context for one brain invocation.
type TurnInput struct {
	Lead          *models.Lead // nil when no lead exists for the sender yet
	History       []string     // chronological "ROLE: content" lines
	Inventory     []VehicleSummary
	Message       string // buffered texts joined into one turn
	OriginContext string
}

type Provider interface {
	Decide(ctx context.Context, in TurnInput) (*Decision, error)
	Close() error
}
