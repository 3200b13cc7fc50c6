package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-2.0-flash-lite"
	}

	m := c.GenerativeModel(modelName)
	m.GenerationConfig.ResponseMIMEType = "application/json"
	m.GenerationConfig.ResponseSchema = decisionSchema()

	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Decide(ctx context.Context, in TurnInput) (*Decision, error) {
	prompt := BuildPrompt(in)

	resp, err := v.model.GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(collectText(resp))
	if raw == "" {
		return nil, errors.New("empty model response")
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decision: %w", err)
	}
	return &d, nil
}

func collectText(resp *vertexgenai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}

func decisionSchema() *vertexgenai.Schema {
	strEnum := func(vals ...string) *vertexgenai.Schema {
		return &vertexgenai.Schema{Type: vertexgenai.TypeString, Enum: vals}
	}
	strArray := &vertexgenai.Schema{
		Type:  vertexgenai.TypeArray,
		Items: &vertexgenai.Schema{Type: vertexgenai.TypeString},
	}

	return &vertexgenai.Schema{
		Type: vertexgenai.TypeObject,
		Properties: map[string]*vertexgenai.Schema{
			"lead_action": strEnum("create", "update", "score", "none"),
			"extracted_fields": {
				Type: vertexgenai.TypeObject,
				Properties: map[string]*vertexgenai.Schema{
					"name":    {Type: vertexgenai.TypeString},
					"surname": {Type: vertexgenai.TypeString},
					"email":   {Type: vertexgenai.TypeString},
					"phone":   {Type: vertexgenai.TypeString},
				},
			},
			"priority_score": {Type: vertexgenai.TypeInteger},
			"pipeline_stage": strEnum("new", "contacted", "negotiating", "closed", "lost"),
			"detected_intent": strEnum("exploration", "informational", "negotiation",
				"appraisal", "appointment", "closing", "other"),
			"referenced_inventory_ids": strArray,
			"reply_text":               {Type: vertexgenai.TypeString},
			"reply_media_refs":         strArray,
			"suggested_app_action": strEnum("reply_only", "open_calculator", "send_spec_sheet",
				"create_task", "create_note", "send_appraisal_link", "send_full_catalog"),
			"reasoning": {Type: vertexgenai.TypeString},
		},
		Required: []string{"lead_action", "priority_score", "pipeline_stage",
			"detected_intent", "reply_text", "suggested_app_action", "reasoning"},
	}
}
