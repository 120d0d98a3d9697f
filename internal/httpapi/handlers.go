package httpapi

import (
	"encoding/json"
	"net/http"
)

// Root is the static service identity endpoint; everything interesting
// happens over the websocket.
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
		Version string `json:"version"`
	}{Message: "ShibaCoder API", Version: "1.0.0"})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
