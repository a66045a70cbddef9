package identity

import (
	"net/http"

	"github.com/mcdev12/focusflow/go/internal/httpjson"
)

// DemoModeResponse tells clients whether sign-in is available
type DemoModeResponse struct {
	DemoMode     bool              `json:"demoMode"`
	OAuthEnabled bool              `json:"oauthEnabled"`
	Message      string            `json:"message"`
	Features     map[string]string `json:"features"`
}

// RegisterRoutes registers the auth status route with an HTTP mux
func (p *Provider) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config/demo-mode", p.demoMode)
}

func (p *Provider) demoMode(w http.ResponseWriter, r *http.Request) {
	resp := DemoModeResponse{
		DemoMode:     p.DemoMode(),
		OAuthEnabled: !p.DemoMode(),
		Features: map[string]string{
			"timer":          "enabled",
			"sessionSharing": "enabled",
			"login":          "enabled",
		},
	}
	if resp.DemoMode {
		resp.Message = "Running in demo mode - login disabled"
		resp.Features["login"] = "disabled"
	} else {
		resp.Message = "Token authentication enabled"
	}
	httpjson.Write(w, http.StatusOK, resp)
}
