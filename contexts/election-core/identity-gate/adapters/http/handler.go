package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"electra/contexts/election-core/identity-gate/application/commands"
	httptransport "electra/contexts/election-core/identity-gate/transport/http"
)

type Handler struct {
	Gate   commands.GateUseCase
	Logger *slog.Logger
}

func (h Handler) RequestChallengeHandler(
	ctx context.Context,
	req httptransport.RequestChallengeRequest,
) (httptransport.RequestChallengeResponse, error) {
	result, err := h.Gate.RequestChallenge(ctx, commands.RequestChallengeCommand{
		Identifier: req.Identifier,
	})
	if err != nil {
		return httptransport.RequestChallengeResponse{}, err
	}
	return httptransport.RequestChallengeResponse{
		ChallengeID: result.ChallengeID,
		ExpiresAt:   result.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h Handler) VerifyChallengeHandler(
	ctx context.Context,
	req httptransport.VerifyChallengeRequest,
) (httptransport.VerifyChallengeResponse, error) {
	result, err := h.Gate.VerifyChallenge(ctx, commands.VerifyChallengeCommand{
		Identifier: req.Identifier,
		Code:       req.Code,
	})
	if err != nil {
		return httptransport.VerifyChallengeResponse{}, err
	}
	return httptransport.VerifyChallengeResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}
