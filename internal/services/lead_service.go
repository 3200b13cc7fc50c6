package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/providers/brain"
	postgresrepo "github.com/menycars/copiloto/internal/repositories/postgres"
	"github.com/menycars/copiloto/internal/utils"
)

type LeadService interface {
	// Resolve upserts the lead for a sender: merges the decision's
	// extracted fields into an existing lead matched by phone, or
	// creates a fresh one sourced from the chat.
	Resolve(ctx context.Context, phone string, sess *models.ChatSession, d *brain.Decision) (*models.Lead, error)
	Get(ctx context.Context, id string) (*models.Lead, error)
}

type leadService struct {
	leads postgresrepo.LeadRepo
}

func NewLeadService(leads postgresrepo.LeadRepo) LeadService {
	return &leadService{leads: leads}
}

func (s *leadService) Resolve(ctx context.Context, phone string, sess *models.ChatSession, d *brain.Decision) (*models.Lead, error) {
	const op = "LeadService.Resolve"

	if phone == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "phone is required", nil)
	}

	existing, err := s.leads.FindByPhone(ctx, phone)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up lead", err)
	}

	if existing != nil {
		fields := map[string]any{
			"priority_score": d.PriorityScore,
			"stage":          string(d.PipelineStage),
			"updated_at":     time.Now().UTC(),
		}
		if d.ExtractedFields.Name != "" {
			fields["name"] = d.ExtractedFields.Name
		}
		if d.ExtractedFields.Surname != "" {
			fields["surname"] = d.ExtractedFields.Surname
		}
		if d.ExtractedFields.Email != "" {
			fields["email"] = d.ExtractedFields.Email
		}
		if len(d.ReferencedInventoryIDs) > 0 {
			fields["interested_vehicle_id"] = d.ReferencedInventoryIDs[0]
		}
		if err := s.leads.UpdateFields(ctx, existing.ID, fields); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to update lead", err)
		}
		existing.PriorityScore = d.PriorityScore
		existing.Stage = string(d.PipelineStage)
		return existing, nil
	}

	name := d.ExtractedFields.Name
	if name == "" {
		name = "Cliente " + phone
	}

	now := time.Now().UTC()
	lead := &models.Lead{
		ID:            uuid.NewString(),
		Name:          name,
		Surname:       d.ExtractedFields.Surname,
		Email:         d.ExtractedFields.Email,
		Phone:         phone,
		Budget:        0,
		InterestLevel: "Medium",
		PriorityScore: d.PriorityScore,
		Stage:         string(d.PipelineStage),
		Source:        "chat",
		AvatarURL:     avatarFor(name),
		History:       []byte("[]"),
		ChatSessionID: sess.SessionID,
		OriginContext: sess.OriginContext,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(d.ReferencedInventoryIDs) > 0 {
		lead.InterestedVehicleID = d.ReferencedInventoryIDs[0]
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create lead", err)
	}
	return lead, nil
}

func (s *leadService) Get(ctx context.Context, id string) (*models.Lead, error) {
	const op = "LeadService.Get"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}
	out, err := s.leads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "lead not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get lead", err)
	}
	return out, nil
}

func avatarFor(name string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/initials/svg?seed=%s", url.QueryEscape(name))
}
