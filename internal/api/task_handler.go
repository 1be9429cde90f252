package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/retry"
	"github.com/taskledger/taskledger/internal/service/progress"
	"github.com/taskledger/taskledger/internal/service/taskstatus"
	"github.com/taskledger/taskledger/internal/store"
)

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	tasks     store.TaskStore
	index     store.TaskStateIndexStore
	updater   *taskstatus.Updater
	purger    *taskstatus.Purger
	checker   *taskstatus.CancellationChecker
	recorder  *progress.Recorder
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	tasks store.TaskStore,
	index store.TaskStateIndexStore,
	updater *taskstatus.Updater,
	purger *taskstatus.Purger,
	checker *taskstatus.CancellationChecker,
	recorder *progress.Recorder,
) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		index:     index,
		updater:   updater,
		purger:    purger,
		checker:   checker,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// SubmitTask handles POST /tasks requests.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "validation error: "+err.Error())
		return
	}

	task := &domain.Task{
		ID:              req.TaskID,
		TopologyName:    req.TopologyName,
		ExpectedRecords: req.ExpectedSize,
		Definition:      req.Definition,
	}
	if err := h.updater.InsertTask(r.Context(), task, req.AppID, req.TopicName); err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusCreated, taskToResponse(task))
}

// GetTask handles GET /tasks/{taskID} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	task, err := retry.StoreValue(r.Context(), func() (*domain.Task, error) {
		return h.tasks.FindByID(r.Context(), taskID)
	})
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, taskToResponse(task))
}

// ListActiveTasks handles GET /topologies/{topologyName}/tasks requests,
// listing tasks still in an active state for the topology.
func (h *TaskHandler) ListActiveTasks(w http.ResponseWriter, r *http.Request) {
	topologyName := chi.URLParam(r, "topologyName")
	if topologyName == "" {
		RespondWithError(w, http.StatusBadRequest, "topology name is required")
		return
	}

	entries, err := retry.StoreValue(r.Context(), func() ([]domain.TaskStateIndexEntry, error) {
		return h.index.FindTasksByStateAndTopology(r.Context(), domain.ActiveTaskStates, topologyName)
	})
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	tasks := []TaskResponse{}
	for _, entry := range entries {
		task, err := h.tasks.FindByID(r.Context(), entry.TaskID)
		if err != nil {
			// The synchronizer will clean up entries whose task is gone.
			if store.IsNotFoundError(err) {
				continue
			}
			RespondWithMappedError(w, r, err)
			return
		}
		tasks = append(tasks, taskToResponse(task))
	}

	RespondWithJSON(w, http.StatusOK, tasks)
}

// KillTask handles POST /tasks/{taskID}/kill requests. Killing is
// idempotent; a second kill of a dropped task succeeds.
func (h *TaskHandler) KillTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	req := KillTaskRequest{Reason: "Dropped by the user"}
	if r.ContentLength > 0 {
		if err := DecodeJSON(r, &req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "invalid request format")
			return
		}
	}

	if err := h.updater.SetDropped(r.Context(), taskID, req.Reason); err != nil {
		RespondWithMappedError(w, r, err)
		return
	}
	if h.checker != nil {
		h.checker.Forget(taskID)
	}

	RespondWithJSON(w, http.StatusOK, CancellationResponse{TaskID: taskID, Cancelled: true})
}

// GetCancellation handles GET /tasks/{taskID}/cancellation requests, the
// worker-facing drop check.
func (h *TaskHandler) GetCancellation(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	dropped, err := h.checker.IsDropped(r.Context(), taskID)
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, CancellationResponse{TaskID: taskID, Cancelled: dropped})
}

// PurgeTask handles DELETE /tasks/{taskID} requests.
func (h *TaskHandler) PurgeTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	if err := h.purger.PurgeTask(r.Context(), taskID); err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReportRecord handles POST /tasks/{taskID}/records requests, recording
// one record outcome for the task.
func (h *TaskHandler) ReportRecord(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	var req ReportRecordRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "validation error: "+err.Error())
		return
	}

	task, err := retry.StoreValue(r.Context(), func() (*domain.Task, error) {
		return h.tasks.FindByID(r.Context(), taskID)
	})
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	switch domain.RecordOutcome(req.Outcome) {
	case domain.RecordOutcomeSuccess:
		err = h.recorder.ReportSuccess(r.Context(), taskID, req.Sequence, req.Resource, req.ResultResource, task.TopologyName)
	case domain.RecordOutcomeError:
		err = h.recorder.ReportFailure(r.Context(), taskID, req.Sequence, req.Resource, req.Info, task.TopologyName)
	}
	if err != nil {
		RespondWithMappedError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "taskID")
	taskID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || taskID == 0 {
		RespondWithError(w, http.StatusBadRequest, "invalid task ID")
		return 0, false
	}
	return taskID, true
}
