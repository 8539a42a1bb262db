package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/jmcastano/twostep"
)

// The wire format keeps the Spanish field names of the service this server
// replaces, so existing clients keep working unchanged.

type userDoc struct {
	ID              string `json:"id,omitempty"`
	PrimerNombre    string `json:"primerNombre"`
	SegundoNombre   string `json:"segundoNombre,omitempty"`
	PrimerApellido  string `json:"primerApellido"`
	SegundoApellido string `json:"segundoApellido,omitempty"`
	Correo          string `json:"correo"`
	Celular         string `json:"celular,omitempty"`
	RolID           string `json:"rolId,omitempty"`
}

func toUserDoc(u *twostep.User) userDoc {
	return userDoc{
		ID:              u.ID,
		PrimerNombre:    u.FirstName,
		SegundoNombre:   u.MiddleName,
		PrimerApellido:  u.LastName,
		SegundoApellido: u.SecondLastName,
		Correo:          u.Email,
		Celular:         u.Phone,
		RolID:           u.RoleID,
	}
}

func newMux(engine *twostep.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /identificar-usuario", handleIdentify(engine))
	mux.HandleFunc("POST /verificar-2fa", handleVerify(engine))
	mux.HandleFunc("POST /usuario", handleRegister(engine))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /metrics", handleMetrics(engine))
	return mux
}

func handleIdentify(engine *twostep.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Correo string `json:"correo"`
			Clave  string `json:"clave"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		user, err := engine.Identify(requestContext(r), twostep.Credentials{
			Email:  body.Correo,
			Secret: body.Clave,
		})
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserDoc(user))
	}
}

func handleVerify(engine *twostep.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UsuarioID string `json:"usuarioId"`
			Codigo2FA string `json:"codigo2fa"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		result, err := engine.VerifyChallenge(requestContext(r), twostep.ChallengeSubmission{
			UserID: body.UsuarioID,
			Code:   body.Codigo2FA,
		})
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"usuario": toUserDoc(result.User),
			"token":   result.Token,
		})
	}
}

func handleRegister(engine *twostep.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body userDoc
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		user, err := engine.Register(requestContext(r), twostep.RegisterInput{
			FirstName:      body.PrimerNombre,
			MiddleName:     body.SegundoNombre,
			LastName:       body.PrimerApellido,
			SecondLastName: body.SegundoApellido,
			Email:          body.Correo,
			Phone:          body.Celular,
			RoleID:         body.RolID,
		})
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUserDoc(user))
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleMetrics(engine *twostep.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := engine.MetricsSnapshot()
		out := make(map[string]uint64, len(snap.Counters))
		for id, value := range snap.Counters {
			out[metricName(id)] = value
		}
		out["audit_dropped"] = engine.AuditDropped()
		writeJSON(w, http.StatusOK, out)
	}
}

func metricName(id twostep.MetricID) string {
	switch id {
	case twostep.MetricIdentifySuccess:
		return "identify_success"
	case twostep.MetricIdentifyFailure:
		return "identify_failure"
	case twostep.MetricChallengeIssued:
		return "challenge_issued"
	case twostep.MetricChallengeSuccess:
		return "challenge_success"
	case twostep.MetricChallengeFailure:
		return "challenge_failure"
	case twostep.MetricChallengeReplay:
		return "challenge_replay"
	case twostep.MetricTokenIssued:
		return "token_issued"
	case twostep.MetricTokenParseFailure:
		return "token_parse_failure"
	case twostep.MetricUserCreated:
		return "user_created"
	case twostep.MetricNotifyFailure:
		return "notify_failure"
	case twostep.MetricStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, twostep.ErrInvalidCredentials), errors.Is(err, twostep.ErrInvalidChallenge):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, twostep.ErrRegistrationInvalid):
		http.Error(w, "bad request", http.StatusBadRequest)
	default:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestContext(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return twostep.WithClientIP(r.Context(), host)
}
