package portal

import (
	"encoding/json"
	"net/http"
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (p *Portal) jsonResponse(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		p.log.Error("could not respond with JSON", "error", err)
	}
}

func (p *Portal) jsonMessage(w http.ResponseWriter, msg string) {
	p.jsonResponse(w, &messageResponse{Message: msg}, http.StatusOK)
}

func (p *Portal) jsonError(w http.ResponseWriter, msg string, code int) {
	p.jsonResponse(w, &errorResponse{Error: msg}, code)
}

// decode reads a JSON request body into v, answering 400 on failure.
func (p *Portal) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		p.jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
