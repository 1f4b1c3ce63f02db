package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	identitygate "electra/contexts/election-core/identity-gate"
	gateerrors "electra/contexts/election-core/identity-gate/domain/errors"
	gatehttp "electra/contexts/election-core/identity-gate/transport/http"
	voteadmission "electra/contexts/election-core/vote-admission"
	admissionerrors "electra/contexts/election-core/vote-admission/domain/errors"
	admissionhttp "electra/contexts/election-core/vote-admission/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "electra/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	adminKey  string
	identity  identitygate.Module
	admission voteadmission.Module
}

func New(
	identity identitygate.Module,
	admission voteadmission.Module,
	adminKey string,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		adminKey:  adminKey,
		identity:  identity,
		admission: admission,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/auth/request-challenge", s.handleRequestChallenge)
	s.mux.HandleFunc("POST /api/auth/verify", s.handleVerifyChallenge)

	s.mux.HandleFunc("POST /api/vote", s.handleCastVote)
	s.mux.HandleFunc("GET /api/check-voted/{identifier}", s.handleVoterStatus)
	s.mux.HandleFunc("GET /api/tally", s.handleTally)
	s.mux.HandleFunc("GET /api/tally/stream", s.handleTallyStream)
	s.mux.HandleFunc("GET /api/results", s.handleResults)
	s.mux.HandleFunc("GET /api/election", s.handleElection)

	s.mux.HandleFunc("POST /api/admin/election/setup", s.handleSetupElection)
	s.mux.HandleFunc("POST /api/admin/election/close", s.handleCloseElection)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRequestChallenge(w http.ResponseWriter, r *http.Request) {
	var req gatehttp.RequestChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGateError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.identity.Handler.RequestChallengeHandler(r.Context(), req)
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req gatehttp.VerifyChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGateError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.identity.Handler.VerifyChallengeHandler(r.Context(), req)
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req admissionhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdmissionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.admission.Handler.CastVoteHandler(r.Context(), resolveBearerToken(r), req)
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoterStatus(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")
	resp, err := s.admission.Handler.VoterStatusHandler(r.Context(), identifier)
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.admission.Handler.TallyHandler(r.Context())
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.admission.Handler.ResultsHandler(r.Context())
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.admission.Handler.ElectionHandler(r.Context())
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetupElection(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(r) {
		writeAdmissionError(w, http.StatusUnauthorized, "invalid_admin_key", "X-Admin-Key header is missing or wrong")
		return
	}
	var req admissionhttp.SetupElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdmissionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.admission.Handler.SetupElectionHandler(r.Context(), req)
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseElection(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(r) {
		writeAdmissionError(w, http.StatusUnauthorized, "invalid_admin_key", "X-Admin-Key header is missing or wrong")
		return
	}
	resp, err := s.admission.Handler.CloseElectionHandler(r.Context())
	if err != nil {
		writeAdmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authorizeAdmin(r *http.Request) bool {
	if strings.TrimSpace(s.adminKey) == "" {
		return false
	}
	return r.Header.Get("X-Admin-Key") == s.adminKey
}

func writeGateDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateerrors.ErrInvalidIdentifier):
		writeGateError(w, http.StatusBadRequest, "invalid_identifier", err.Error())
	case errors.Is(err, gateerrors.ErrChallengeNotFound):
		writeGateError(w, http.StatusNotFound, "challenge_not_found", err.Error())
	case errors.Is(err, gateerrors.ErrChallengeExpired):
		writeGateError(w, http.StatusGone, "challenge_expired", err.Error())
	case errors.Is(err, gateerrors.ErrCodeMismatch):
		writeGateError(w, http.StatusUnauthorized, "code_mismatch", err.Error())
	case errors.Is(err, gateerrors.ErrTokenNotFound),
		errors.Is(err, gateerrors.ErrTokenExpired):
		writeGateError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	default:
		writeGateError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeAdmissionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, admissionerrors.ErrInvalidInput):
		writeAdmissionError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, admissionerrors.ErrInvalidCandidate):
		writeAdmissionError(w, http.StatusUnprocessableEntity, "invalid_candidate", err.Error())
	case errors.Is(err, admissionerrors.ErrUnauthenticated):
		writeAdmissionError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, admissionerrors.ErrAlreadyVoted):
		writeAdmissionError(w, http.StatusForbidden, "already_voted", err.Error())
	case errors.Is(err, admissionerrors.ErrElectionNotOpen):
		writeAdmissionError(w, http.StatusConflict, "election_not_open", err.Error())
	case errors.Is(err, admissionerrors.ErrElectionStateTransition):
		writeAdmissionError(w, http.StatusConflict, "invalid_state_transition", err.Error())
	case errors.Is(err, admissionerrors.ErrElectionNotFound):
		writeAdmissionError(w, http.StatusNotFound, "election_not_found", err.Error())
	case errors.Is(err, admissionerrors.ErrLedgerRejected):
		writeAdmissionError(w, http.StatusBadGateway, "ledger_rejected", err.Error())
	case errors.Is(err, admissionerrors.ErrLedgerUnavailable),
		errors.Is(err, admissionerrors.ErrSubmissionFailed):
		writeAdmissionError(w, http.StatusBadGateway, "submission_failed", err.Error())
	case errors.Is(err, admissionerrors.ErrSubmissionPending):
		writeAdmissionError(w, http.StatusGatewayTimeout, "submission_pending", err.Error())
	default:
		writeAdmissionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGateError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, gatehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeAdmissionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, admissionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveBearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return header
}
