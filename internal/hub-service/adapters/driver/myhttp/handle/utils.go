package handle

import (
	"encoding/json"
	"net/http"
)

const WaitTime = 10

func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// jsonError writes {"error": ..., "code": ...}. message, when set, is the text a dashboard shows.
func jsonError(w http.ResponseWriter, code int, err error, message ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	body := map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	}
	if len(message) > 0 {
		body["message"] = message[0]
	}
	_ = json.NewEncoder(w).Encode(body)
}

// bearerToken reads the Authorization header, falling back to the token query parameter that
// browsers use for WebSocket handshakes.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}
