package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ccyingfu/q-alpha/internal/domain"
	"github.com/ccyingfu/q-alpha/internal/store"
)

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assetType := r.URL.Query().Get("type")
	if assetType != "" && !domain.ValidAssetType(domain.AssetType(assetType)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown asset type %q", assetType))
		return
	}
	assets, err := s.store.ListAssets(r.Context(), assetType)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		out = append(out, assetResponse(&assets[i]))
	}
	writeJSON(w, out)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, assetResponse(asset))
}

func (s *Server) handleGetAssetByCode(w http.ResponseWriter, r *http.Request) {
	asset, err := s.store.GetAssetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, assetResponse(asset))
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var payload AssetPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAssetPayload(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetAssetByCode(r.Context(), payload.Code); err == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("asset %s already exists", payload.Code))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}
	asset := &domain.Asset{
		Code:        payload.Code,
		Name:        payload.Name,
		Type:        domain.AssetType(payload.Type),
		Description: payload.Description,
	}
	if err := s.store.CreateAsset(r.Context(), asset); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.log.Info("asset created", "code", asset.Code, "id", asset.ID)
	writeJSON(w, assetResponse(asset))
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var payload AssetPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAssetPayload(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	asset.Code = payload.Code
	asset.Name = payload.Name
	asset.Type = domain.AssetType(payload.Type)
	asset.Description = payload.Description
	if err := s.store.UpdateAsset(r.Context(), asset); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, assetResponse(asset))
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteAsset(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, MessageResponse{Message: "asset deleted"})
}

func validateAssetPayload(p *AssetPayload) error {
	if p.Code == "" {
		return fmt.Errorf("code is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !domain.ValidAssetType(domain.AssetType(p.Type)) {
		return fmt.Errorf("unknown asset type %q", p.Type)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}
