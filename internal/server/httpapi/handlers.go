package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hipnode/hipnode/internal/common"
	"github.com/hipnode/hipnode/internal/server/auth"
)

type payloadRequest struct {
	Address string `json:"address"`
}

type loginRequest struct {
	// Wallet scheme.
	Payload   *auth.SignInPayload `json:"payload,omitempty"`
	Signature string              `json:"signature,omitempty"`
	PublicKey string              `json:"publicKey,omitempty"`

	// Password scheme.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// credential maps the request body onto the tagged credential union. The
// scheme is chosen by which fields are present, but the resulting value is an
// explicit type, never a structurally inferred one.
func (r loginRequest) credential() (auth.Credential, bool) {
	if r.Payload != nil {
		return auth.WalletProof{
			Payload:   *r.Payload,
			Signature: r.Signature,
			PublicKey: r.PublicKey,
		}, true
	}
	if r.Username != "" {
		return auth.PasswordCredential{Username: r.Username, Password: r.Password}, true
	}
	return nil, false
}

type loginResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handlePayload(w http.ResponseWriter, r *http.Request) {
	var req payloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		writeJSON(w, http.StatusBadRequest, loginResult{Success: false, Error: common.ErrInvalidPayload.Error()})
		return
	}

	payload, err := s.authService.GeneratePayload(r.Context(), req.Address)
	if err != nil {
		s.logger.Error(r.Context(), "payload generation failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, loginResult{Success: false, Error: common.ErrorInternal.Error()})
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// handleLogin is the error boundary of the login pipeline: everything below
// it is converted to the structured {success,error} result, never re-thrown.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.ObserveLogin("invalid_payload")
		writeJSON(w, http.StatusBadRequest, loginResult{Success: false, Error: common.ErrInvalidPayload.Error()})
		return
	}

	cred, ok := req.credential()
	if !ok {
		s.metrics.ObserveLogin("invalid_payload")
		writeJSON(w, http.StatusBadRequest, loginResult{Success: false, Error: common.ErrInvalidPayload.Error()})
		return
	}

	token, err := s.authService.Login(r.Context(), cred)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidPayload):
			s.metrics.ObserveLogin("invalid_payload")
			writeJSON(w, http.StatusBadRequest, loginResult{Success: false, Error: common.ErrInvalidPayload.Error()})
		default:
			s.logger.Error(r.Context(), "login failed", "err", err)
			s.metrics.ObserveLogin("error")
			writeJSON(w, http.StatusInternalServerError, loginResult{Success: false, Error: common.ErrorInternal.Error()})
		}
		return
	}

	s.cookies.Set(w, token)
	s.metrics.ObserveLogin("success")
	writeJSON(w, http.StatusOK, loginResult{Success: true})
}

type sessionStatus struct {
	LoggedIn bool   `json:"loggedIn"`
	Address  string `json:"address,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	token := s.cookies.Read(r)
	if token == "" {
		writeJSON(w, http.StatusOK, sessionStatus{LoggedIn: false})
		return
	}

	address, err := s.issuer.Validate(token)
	if err != nil {
		writeJSON(w, http.StatusOK, sessionStatus{LoggedIn: false})
		return
	}

	writeJSON(w, http.StatusOK, sessionStatus{LoggedIn: true, Address: address})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.cookies.Clear(w)
	writeJSON(w, http.StatusOK, loginResult{Success: true})
}

type presignPutResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	key, url, err := s.profileService.GetPresignedPutURL(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "presign put failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, presignPutResponse{Key: key, URL: url})
}

func (s *Server) handleImageURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	url, err := s.profileService.GetPresignedGetURL(r.Context(), key)
	if err != nil {
		s.logger.Error(r.Context(), "presign get failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
