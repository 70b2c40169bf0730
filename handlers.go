package assettracking

import (
	"encoding/json"
	"net/http"

	"github.com/theoremus-urban-solutions/asset-tracking/tracker"
)

func (s *Server) handleSubmitLocation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentityPath(r.PathValue("assetType"), r.PathValue("assetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var report tracker.LocationReport
	if derr := json.NewDecoder(r.Body).Decode(&report); derr != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed report body")
		return
	}
	res := s.svc.SubmitLocation(r.Context(), id.Type, id.ID, report)
	if !res.Accepted {
		writeError(w, http.StatusBadRequest, res.Reason, "report rejected")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assetType, err := parseAssetTypeParam(r.URL.Query().Get("assetType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	states := s.svc.CurrentState(assetType)
	if states == nil {
		states = []tracker.AssetState{}
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentityPath(r.PathValue("assetType"), r.PathValue("assetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	st, ok := s.svc.GetAsset(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such asset: "+id.String())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}
