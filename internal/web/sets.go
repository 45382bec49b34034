package web

import (
	"encoding/json"
	"net/http"

	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/pointset"
)

func (s *Server) listSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.cfg.Store.List(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) getSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.cfg.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) createSet(w http.ResponseWriter, r *http.Request) {
	owner, email := ownerOf(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing "+HeaderOwnerID)
		return
	}
	set, ok := decodeSet(w, r)
	if !ok {
		return
	}
	set.OwnerID, set.OwnerEmail = owner, email

	if err := set.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cfg.Store.Create(r.Context(), set); err != nil {
		s.storeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("set created", "set_id", set.ID, "owner", owner, "points", len(set.Points))
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) updateSet(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.ownedSet(w, r)
	if !ok {
		return
	}
	set, ok := decodeSet(w, r)
	if !ok {
		return
	}
	set.ID = existing.ID
	set.OwnerID, set.OwnerEmail = existing.OwnerID, existing.OwnerEmail
	set.CreatedAt = existing.CreatedAt

	if err := set.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cfg.Store.Update(r.Context(), set); err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) deleteSet(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.ownedSet(w, r)
	if !ok {
		return
	}
	if err := s.cfg.Store.Delete(r.Context(), existing.ID); err != nil {
		s.storeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("set deleted", "set_id", existing.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ownedSet loads the set named in the path and checks that the caller owns
// it. On failure the response is already written.
func (s *Server) ownedSet(w http.ResponseWriter, r *http.Request) (*pointset.PointSet, bool) {
	owner, _ := ownerOf(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing "+HeaderOwnerID)
		return nil, false
	}
	set, err := s.cfg.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return nil, false
	}
	if set.OwnerID != owner {
		writeError(w, http.StatusForbidden, "only the owner may change this set")
		return nil, false
	}
	return set, true
}

func decodeSet(w http.ResponseWriter, r *http.Request) (*pointset.PointSet, bool) {
	var set pointset.PointSet
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&set); err != nil {
		writeError(w, http.StatusBadRequest, "invalid set: "+err.Error())
		return nil, false
	}
	return &set, true
}
