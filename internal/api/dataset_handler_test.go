package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) registerRecord(t *testing.T, datasetID, localID, md5 string) HarvestedRecordResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/datasets/"+datasetID+"/records", RegisterHarvestRequest{
		LocalID: localID,
		MD5:     md5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp HarvestedRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterHarvest(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	resp := env.registerRecord(t, "ds-1", "local-1", "md5-a")
	assert.Equal(t, "ds-1", resp.DatasetID)
	assert.Equal(t, "local-1", resp.LocalID)
	assert.Equal(t, "md5-a", resp.LatestHarvestMD5)
	require.NotNil(t, resp.LatestHarvestDate)
	assert.Nil(t, resp.PreviewHarvestDate)
}

func TestRegisterHarvestKeepsLaterStages(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	env.registerRecord(t, "ds-1", "local-1", "md5-a")
	rec := env.do(t, http.MethodPost, "/datasets/ds-1/records/local-1/harvests", StampHarvestRequest{
		Stage: "PREVIEW",
		MD5:   "md5-a",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A later harvest bumps the latest stamp without touching preview.
	resp := env.registerRecord(t, "ds-1", "local-1", "md5-b")
	assert.Equal(t, "md5-b", resp.LatestHarvestMD5)
	assert.Equal(t, "md5-a", resp.PreviewHarvestMD5)
	assert.NotNil(t, resp.PreviewHarvestDate)
}

func TestRegisterHarvestValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/datasets/ds-1/records", RegisterHarvestRequest{MD5: "md5-a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecordNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/datasets/ds-1/records/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStampRecord(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.registerRecord(t, "ds-1", "local-1", "md5-a")

	date := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := env.do(t, http.MethodPost, "/datasets/ds-1/records/local-1/harvests", StampHarvestRequest{
		Stage: "PUBLISHED",
		Date:  &date,
		MD5:   "md5-a",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp HarvestedRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.PublishedHarvestDate)
	assert.True(t, resp.PublishedHarvestDate.Equal(date))
	assert.Equal(t, "md5-a", resp.PublishedHarvestMD5)
}

func TestStampRecordUnknownRecord(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/datasets/ds-1/records/missing/harvests", StampHarvestRequest{
		Stage: "INDEXED",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStampRecordRejectsUnknownStage(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.registerRecord(t, "ds-1", "local-1", "md5-a")

	rec := env.do(t, http.MethodPost, "/datasets/ds-1/records/local-1/harvests", StampHarvestRequest{
		Stage: "ARCHIVED",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDatasetRecords(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	env.registerRecord(t, "ds-1", "local-1", "md5-a")
	env.registerRecord(t, "ds-1", "local-2", "md5-b")
	env.registerRecord(t, "ds-2", "local-3", "md5-c")

	rec := env.do(t, http.MethodGet, "/datasets/ds-1/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []HarvestedRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	locals := []string{resp[0].LocalID, resp[1].LocalID}
	assert.ElementsMatch(t, []string{"local-1", "local-2"}, locals)
}

func TestListDatasetRecordsEmptyDataset(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/datasets/ds-1/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDeleteRecord(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.registerRecord(t, "ds-1", "local-1", "md5-a")

	rec := env.do(t, http.MethodDelete, "/datasets/ds-1/records/local-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/datasets/ds-1/records/local-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleting an absent record stays a no-op.
	rec = env.do(t, http.MethodDelete, "/datasets/ds-1/records/local-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
