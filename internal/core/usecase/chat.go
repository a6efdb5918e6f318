package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

type ChatUseCase struct {
	uow     ports.UnitOfWork
	gateway ports.AIGateway
	policy  domain.AccessPolicy
	tone    string
}

func NewChatUseCase(uow ports.UnitOfWork, gateway ports.AIGateway, policy domain.AccessPolicy, tone string) *ChatUseCase {
	return &ChatUseCase{
		uow:     uow,
		gateway: gateway,
		policy:  policy,
		tone:    tone,
	}
}

func (uc *ChatUseCase) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("query is required"))
	}

	docs, err := uc.uow.Repositories().Documents.ListByTenant(ctx, req.Tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("list tenant documents: %w", err)
	}

	var refs []domain.FileRef
	for _, doc := range uc.policy.Filter(req.User, docs) {
		if doc.ExternalURI != "" {
			refs = append(refs, doc.FileRef())
		}
	}
	if len(refs) == 0 {
		return &domain.ChatAnswer{Answer: domain.NoDocumentsAnswer, RoleUsed: req.User.Role}, nil
	}

	instruction := domain.PersonaInstruction(req.User.Role, req.Tenant.DisplayName(), uc.tone)
	answer, err := uc.gateway.GenerateAnswer(ctx, req.Query, refs, instruction)
	if err != nil {
		slog.Error("chat_generation_failed",
			"tenant_id", req.Tenant.ID,
			"role", req.User.Role,
			"documents", len(refs),
			"error", err,
		)
		answer = domain.FallbackAnswer
	}

	return &domain.ChatAnswer{
		Answer:   answer,
		RoleUsed: req.User.Role,
		Sources:  len(refs),
	}, nil
}
