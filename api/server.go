package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"votechain-backend/models"
	"votechain-backend/service"
	"votechain-backend/storage"
)

type Server struct {
	elections    *service.ElectionService
	votes        *service.VoteService
	verification *service.VerificationService
	auth         *Auth
	store        *storage.Store
	metrics      *service.MetricsCollector
	logger       *slog.Logger
	httpServer   *http.Server
}

func NewServer(
	addr string,
	elections *service.ElectionService,
	votes *service.VoteService,
	verification *service.VerificationService,
	auth *Auth,
	store *storage.Store,
	metrics *service.MetricsCollector,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		elections:    elections,
		votes:        votes,
		verification: verification,
		auth:         auth,
		store:        store,
		metrics:      metrics,
		logger:       logger.With("component", "api"),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

type createElectionRequest struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	IsLiveResults bool       `json:"is_live_results"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

type addCandidateRequest struct {
	Name string `json:"name"`
}

type registerVoterRequest struct {
	ElectionID uint64 `json:"election_id"`
	Enrollment string `json:"enrollment_number"`
	Name       string `json:"name"`
	Image      string `json:"image"`
}

type castVoteRequest struct {
	ElectionID  uint64 `json:"election_id"`
	Enrollment  string `json:"enrollment_number"`
	Image       string `json:"image"`
	CandidateID uint64 `json:"candidate_id"`
}

type receiptSearchRequest struct {
	ElectionID uint64 `json:"election_id"`
	Enrollment string `json:"enrollment_number"`
}

type txResponse struct {
	TxHash string `json:"tx_hash"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.HandleFunc("POST /api/admin/login_face", s.handleAdminFaceLogin)

	mux.HandleFunc("GET /api/elections", s.handleListElections)
	mux.HandleFunc("POST /api/elections", s.auth.adminRequired(s.handleCreateElection))
	mux.HandleFunc("GET /api/elections/{id}", s.handleGetElection)
	mux.HandleFunc("GET /api/elections/{id}/phase", s.handleGetPhase)
	mux.HandleFunc("GET /api/elections/{id}/candidates", s.handleListCandidates)
	mux.HandleFunc("POST /api/elections/{id}/candidates", s.auth.adminRequired(s.handleAddCandidate))
	mux.HandleFunc("POST /api/elections/{id}/start", s.auth.adminRequired(s.handleStartElection))
	mux.HandleFunc("POST /api/elections/{id}/end", s.auth.adminRequired(s.handleEndElection))
	mux.HandleFunc("POST /api/elections/{id}/declare_results", s.auth.adminRequired(s.handleDeclareResults))

	// Registration is operator-assisted: an admin submits the voter's details
	// and captured sample. Voting and verification stay public.
	mux.HandleFunc("POST /api/register_voter", s.auth.adminRequired(s.handleRegisterVoter))
	mux.HandleFunc("POST /api/vote", s.handleCastVote)

	mux.HandleFunc("GET /api/receipts/{id}/verify", s.handleVerifyReceipt)
	mux.HandleFunc("POST /api/receipts/search", s.handleSearchReceipt)

	mux.HandleFunc("GET /api/voters", s.auth.adminRequired(s.handleListVoters))
	mux.HandleFunc("GET /api/metrics", s.auth.adminRequired(s.handleMetrics))

	return mux
}

func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	voters, elections, err := s.store.Counts()
	if err != nil {
		writeError(w, err)
		return
	}
	ledgerUp := true
	if _, err := s.elections.EffectivePhase(r.Context(), 1); models.IsKind(err, models.ErrTransportUnavailable) {
		ledgerUp = false
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"ledger_reachable": ledgerUp,
		"voters":           voters,
		"elections":        elections,
	})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := s.auth.LoginPassword(req.Username, req.Password)
	if err != nil {
		writeErrorStatus(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAdminFaceLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sample, err := decodeImage(req.Image)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := s.auth.LoginFace(req.Username, sample)
	if err != nil {
		writeErrorStatus(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req createElectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	electionID, txHash, err := s.elections.CreateElection(r.Context(), req.Name, req.Description, req.IsLiveResults, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"election_id": electionID,
		"tx_hash":     txHash,
	})
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	elections, err := s.elections.ListElections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"elections": elections})
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	electionID, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.elections.GetElection(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetPhase(w http.ResponseWriter, r *http.Request) {
	electionID, ok := pathID(w, r)
	if !ok {
		return
	}
	phase, err := s.elections.EffectivePhase(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phase": phase.String()})
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	electionID, ok := pathID(w, r)
	if !ok {
		return
	}
	candidates, err := s.elections.ListCandidates(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req addCandidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	txHash, err := s.elections.AddCandidate(r.Context(), electionID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txResponse{TxHash: txHash})
}

func (s *Server) handleStartElection(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.elections.StartElection)
}

func (s *Server) handleEndElection(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.elections.EndElection)
}

func (s *Server) handleDeclareResults(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.elections.DeclareResults)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, uint64) (string, error)) {
	electionID, ok := pathID(w, r)
	if !ok {
		return
	}
	txHash, err := op(r.Context(), electionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{TxHash: txHash})
}

func (s *Server) handleRegisterVoter(w http.ResponseWriter, r *http.Request) {
	var req registerVoterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sample, err := decodeImage(req.Image)
	if err != nil {
		writeError(w, err)
		return
	}
	txHash, err := s.votes.RegisterVoter(r.Context(), req.ElectionID, req.Enrollment, req.Name, sample)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Voter registered successfully",
		"tx_hash": txHash,
	})
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sample, err := decodeImage(req.Image)
	if err != nil {
		writeError(w, err)
		return
	}
	outcome, err := s.votes.CastVote(r.Context(), req.ElectionID, req.Enrollment, sample, req.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	receiptID, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := s.verification.VerifyReceipt(r.Context(), receiptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	receipt, exact, err := s.verification.FindReceipt(req.Enrollment, req.ElectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"receipt":     receipt,
		"exact_match": exact,
	})
}

func (s *Server) handleListVoters(w http.ResponseWriter, r *http.Request) {
	voters, err := s.store.Voters()
	if err != nil {
		writeError(w, err)
		return
	}
	type voterInfo struct {
		Enrollment string    `json:"enrollment_number"`
		Name       string    `json:"name"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]voterInfo, 0, len(voters))
	for _, v := range voters {
		out = append(out, voterInfo{Enrollment: v.Enrollment, Name: v.Name, CreatedAt: v.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"voters": out})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, models.NewError(models.ErrValidation, "Invalid id"))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, models.NewError(models.ErrValidation, "Invalid request body"))
		return false
	}
	return true
}

// decodeImage accepts a raw base64 string or a browser data URL.
func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, models.NewError(models.ErrValidation, "Face image required")
	}
	if idx := strings.IndexByte(encoded, ','); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, models.WrapError(models.ErrValidation, "Invalid image encoding", err)
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. A face mismatch is
// an authentication failure rather than a malformed request.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch models.KindOf(err) {
	case models.ErrValidation:
		status = http.StatusBadRequest
		if models.ReasonOf(err) == "Face mismatch" {
			status = http.StatusUnauthorized
		}
	case models.ErrPhaseGate, models.ErrAlreadyActed:
		status = http.StatusBadRequest
	case models.ErrNotFound:
		status = http.StatusNotFound
	case models.ErrTransportUnavailable:
		status = http.StatusServiceUnavailable
	case models.ErrConfirmationTimeout:
		status = http.StatusGatewayTimeout
	case models.ErrLedgerRejected:
		status = http.StatusBadGateway
	}
	writeErrorStatus(w, status, err)
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": models.ReasonOf(err),
		"kind":  string(models.KindOf(err)),
	})
}
