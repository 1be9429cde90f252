package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskledger/taskledger/internal/service/harvest"
)

// DatasetHandler handles dataset catalog HTTP requests. The catalog is
// keyed by dataset, not task, so these routes live outside the task tree.
type DatasetHandler struct {
	catalog   *harvest.Catalog
	validator *validator.Validate
}

// NewDatasetHandler creates a new DatasetHandler.
func NewDatasetHandler(catalog *harvest.Catalog) *DatasetHandler {
	return &DatasetHandler{
		catalog:   catalog,
		validator: validator.New(),
	}
}

// RegisterHarvest handles POST /datasets/{datasetID}/records requests,
// stamping the latest harvest of one record. A record seen for the first
// time is added to the catalog.
func (h *DatasetHandler) RegisterHarvest(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := datasetIDParam(w, r)
	if !ok {
		return
	}

	var req RegisterHarvestRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "validation error: "+err.Error())
		return
	}

	if err := h.catalog.RegisterHarvest(r.Context(), datasetID, req.LocalID, req.MD5); err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	record, err := h.catalog.Record(r.Context(), datasetID, req.LocalID)
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusCreated, harvestedRecordToResponse(record))
}

// GetRecord handles GET /datasets/{datasetID}/records/{localID} requests.
func (h *DatasetHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := datasetIDParam(w, r)
	if !ok {
		return
	}
	localID, ok := localIDParam(w, r)
	if !ok {
		return
	}

	record, err := h.catalog.Record(r.Context(), datasetID, localID)
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, harvestedRecordToResponse(record))
}

// ListRecords handles GET /datasets/{datasetID}/records requests, walking
// every hash bucket of the dataset in order.
func (h *DatasetHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := datasetIDParam(w, r)
	if !ok {
		return
	}

	records := []HarvestedRecordResponse{}
	it := h.catalog.DatasetRecords(datasetID)
	for it.Next(r.Context()) {
		record := it.Record()
		records = append(records, harvestedRecordToResponse(&record))
	}
	if err := it.Err(); err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, records)
}

// StampRecord handles POST /datasets/{datasetID}/records/{localID}/harvests
// requests, stamping the record with a preview, published or indexing date.
func (h *DatasetHandler) StampRecord(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := datasetIDParam(w, r)
	if !ok {
		return
	}
	localID, ok := localIDParam(w, r)
	if !ok {
		return
	}

	var req StampHarvestRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "validation error: "+err.Error())
		return
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	var err error
	switch req.Stage {
	case "PREVIEW":
		err = h.catalog.MarkPreviewed(r.Context(), datasetID, localID, date, req.MD5)
	case "PUBLISHED":
		err = h.catalog.MarkPublished(r.Context(), datasetID, localID, date, req.MD5)
	case "INDEXED":
		err = h.catalog.MarkIndexed(r.Context(), datasetID, localID, date)
	}
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	record, err := h.catalog.Record(r.Context(), datasetID, localID)
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, harvestedRecordToResponse(record))
}

// DeleteRecord handles DELETE /datasets/{datasetID}/records/{localID}
// requests. Deleting an absent record succeeds.
func (h *DatasetHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := datasetIDParam(w, r)
	if !ok {
		return
	}
	localID, ok := localIDParam(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Forget(r.Context(), datasetID, localID); err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func datasetIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	datasetID := chi.URLParam(r, "datasetID")
	if datasetID == "" {
		RespondWithError(w, http.StatusBadRequest, "dataset ID is required")
		return "", false
	}
	return datasetID, true
}

func localIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	localID := chi.URLParam(r, "localID")
	if localID == "" {
		RespondWithError(w, http.StatusBadRequest, "local ID is required")
		return "", false
	}
	return localID, true
}
