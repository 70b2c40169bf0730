package assettracking

import "net/http"

type healthResponse struct {
	Status        string `json:"status"`
	TrackedAssets int    `json:"tracked_assets"`
	Observers     int    `json:"observers"`
	BusDriver     string `json:"bus_driver"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		TrackedAssets: len(s.svc.CurrentState("")),
		Observers:     s.hub.ActiveConnections(),
		BusDriver:     s.busDriver,
	}
	writeJSON(w, http.StatusOK, resp)
}
