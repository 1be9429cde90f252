// Package mocks provides in-memory implementations of the store
// interfaces for service and handler tests. They honor the same sentinel
// error contracts as the Postgres stores but keep everything in maps.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskledger/taskledger/internal/bucketing"
	"github.com/taskledger/taskledger/internal/domain"
	"github.com/taskledger/taskledger/internal/store"
)

// MemTaskStore is an in-memory store.TaskStore.
type MemTaskStore struct {
	mu    sync.Mutex
	tasks map[int64]*domain.Task
}

// NewMemTaskStore creates an empty MemTaskStore.
func NewMemTaskStore() *MemTaskStore {
	return &MemTaskStore{tasks: make(map[int64]*domain.Task)}
}

var _ store.TaskStore = (*MemTaskStore)(nil)

func (m *MemTaskStore) Insert(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; ok {
		return store.ErrDuplicate
	}
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *MemTaskStore) FindByID(_ context.Context, taskID int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *MemTaskStore) UpdateState(_ context.Context, taskID int64, state domain.TaskState, description string, startTime *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.State = state
	task.StateDescription = description
	if startTime != nil {
		task.StartTime = startTime
	}
	return nil
}

func (m *MemTaskStore) Finish(_ context.Context, taskID int64, state domain.TaskState, description string, finishTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.State = state
	task.StateDescription = description
	task.FinishTime = &finishTime
	return nil
}

func (m *MemTaskStore) SetExpectedSize(_ context.Context, taskID int64, expectedSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.ExpectedRecords = expectedSize
	return nil
}

func (m *MemTaskStore) UpdateCounters(_ context.Context, taskID int64, counters domain.TaskCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.ProcessedRecords = counters.ProcessedRecords
	task.IgnoredRecords = counters.IgnoredRecords
	task.DeletedRecords = counters.DeletedRecords
	task.ProcessedErrors = counters.ProcessedErrors
	return nil
}

func (m *MemTaskStore) EndTask(_ context.Context, taskID int64, counters domain.TaskCounters, state domain.TaskState, description string, finishTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.ProcessedRecords = counters.ProcessedRecords
	task.IgnoredRecords = counters.IgnoredRecords
	task.DeletedRecords = counters.DeletedRecords
	task.ProcessedErrors = counters.ProcessedErrors
	task.State = state
	task.StateDescription = description
	task.FinishTime = &finishTime
	return nil
}

func (m *MemTaskStore) UpdatePostProcessedCounts(_ context.Context, taskID int64, expected, processed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.PostProcessedExpected = expected
	task.PostProcessedCount = processed
	return nil
}

func (m *MemTaskStore) Delete(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

type indexKey struct {
	state    domain.TaskState
	topology string
	taskID   int64
}

// MemIndexStore is an in-memory store.TaskStateIndexStore.
type MemIndexStore struct {
	mu      sync.Mutex
	entries map[indexKey]domain.TaskStateIndexEntry
}

// NewMemIndexStore creates an empty MemIndexStore.
func NewMemIndexStore() *MemIndexStore {
	return &MemIndexStore{entries: make(map[indexKey]domain.TaskStateIndexEntry)}
}

var _ store.TaskStateIndexStore = (*MemIndexStore)(nil)

func (m *MemIndexStore) Insert(_ context.Context, entry *domain.TaskStateIndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[indexKey{entry.State, entry.TopologyName, entry.TaskID}] = *entry
	return nil
}

func (m *MemIndexStore) Delete(_ context.Context, state domain.TaskState, topologyName string, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, indexKey{state, topologyName, taskID})
	return nil
}

func (m *MemIndexStore) FindEntry(_ context.Context, state domain.TaskState, topologyName string, taskID int64) (*domain.TaskStateIndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[indexKey{state, topologyName, taskID}]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &entry, nil
}

func (m *MemIndexStore) FindTasksByStateAndTopology(_ context.Context, states []domain.TaskState, topologyName string) ([]domain.TaskStateIndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.TaskStateIndexEntry{}
	for key, entry := range m.entries {
		if key.topology != topologyName {
			continue
		}
		if stateIn(key.state, states) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *MemIndexStore) FindTasksByState(_ context.Context, states []domain.TaskState) ([]domain.TaskStateIndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.TaskStateIndexEntry{}
	for key, entry := range m.entries {
		if stateIn(key.state, states) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// States lists the index states currently recorded for a task, for
// asserting that transitions moved entries rather than duplicating them.
func (m *MemIndexStore) States(taskID int64) []domain.TaskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.TaskState{}
	for key := range m.entries {
		if key.taskID == taskID {
			out = append(out, key.state)
		}
	}
	return out
}

func stateIn(state domain.TaskState, states []domain.TaskState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// notificationRetention mirrors the retention window of the Postgres
// notification store.
const notificationRetention = 14 * 24 * time.Hour

type memNotification struct {
	domain.RecordNotification
	expiresAt time.Time
}

// MemNotificationStore is an in-memory store.NotificationStore. Reads skip
// expired entries; PurgeExpired reclaims them. Tests set Retention negative
// before inserting to create already-expired rows.
type MemNotificationStore struct {
	mu            sync.Mutex
	Retention     time.Duration
	notifications map[int64][]memNotification
}

// NewMemNotificationStore creates an empty MemNotificationStore.
func NewMemNotificationStore() *MemNotificationStore {
	return &MemNotificationStore{
		Retention:     notificationRetention,
		notifications: make(map[int64][]memNotification),
	}
}

var _ store.NotificationStore = (*MemNotificationStore)(nil)

func (m *MemNotificationStore) Insert(_ context.Context, n *domain.RecordNotification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.BucketNumber = bucketing.SequenceBucket(n.SequenceNumber)
	m.notifications[n.TaskID] = append(m.notifications[n.TaskID], memNotification{
		RecordNotification: *n,
		expiresAt:          time.Now().Add(m.Retention),
	})
	return nil
}

func (m *MemNotificationStore) ProcessedCount(_ context.Context, taskID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var top int64 = -1
	for _, n := range m.notifications[taskID] {
		if now.After(n.expiresAt) {
			continue
		}
		if n.SequenceNumber > top {
			top = n.SequenceNumber
		}
	}
	return top + 1, nil
}

func (m *MemNotificationStore) FetchBucket(_ context.Context, taskID int64, bucket int) ([]domain.RecordNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []domain.RecordNotification{}
	for _, n := range m.notifications[taskID] {
		if n.BucketNumber == bucket && !now.After(n.expiresAt) {
			out = append(out, n.RecordNotification)
		}
	}
	return out, nil
}

func (m *MemNotificationStore) PurgeExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var purged int64
	for taskID, list := range m.notifications {
		kept := list[:0]
		for _, n := range list {
			if now.After(n.expiresAt) {
				purged++
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == 0 {
			delete(m.notifications, taskID)
			continue
		}
		m.notifications[taskID] = kept
	}
	return purged, nil
}

func (m *MemNotificationStore) RemoveForTask(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notifications, taskID)
	return nil
}

// MemProcessedRecordStore is an in-memory store.ProcessedRecordStore.
type MemProcessedRecordStore struct {
	mu      sync.Mutex
	records map[int64]map[string]domain.ProcessedRecord
}

// NewMemProcessedRecordStore creates an empty MemProcessedRecordStore.
func NewMemProcessedRecordStore() *MemProcessedRecordStore {
	return &MemProcessedRecordStore{records: make(map[int64]map[string]domain.ProcessedRecord)}
}

var _ store.ProcessedRecordStore = (*MemProcessedRecordStore)(nil)

func (m *MemProcessedRecordStore) Insert(_ context.Context, r *domain.ProcessedRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[r.TaskID] == nil {
		m.records[r.TaskID] = make(map[string]domain.ProcessedRecord)
	}
	m.records[r.TaskID][r.RecordID] = *r
	return nil
}

func (m *MemProcessedRecordStore) UpdateOutcome(_ context.Context, taskID int64, recordID string, outcome domain.RecordOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[taskID][recordID]
	if !ok {
		return store.ErrRecordNotFound
	}
	r.Outcome = outcome
	m.records[taskID][recordID] = r
	return nil
}

func (m *MemProcessedRecordStore) SelectByPrimaryKey(_ context.Context, taskID int64, recordID string) (*domain.ProcessedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[taskID][recordID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return &r, nil
}

func (m *MemProcessedRecordStore) RemoveForTask(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, taskID)
	return nil
}

type stateKey struct {
	taskID   int64
	recordID string
}

// MemProcessingStateStore is an in-memory store.RecordProcessingStateStore.
type MemProcessingStateStore struct {
	mu      sync.Mutex
	markers map[stateKey]domain.RecordProcessingState
	expiry  map[stateKey]time.Time
}

// NewMemProcessingStateStore creates an empty MemProcessingStateStore.
func NewMemProcessingStateStore() *MemProcessingStateStore {
	return &MemProcessingStateStore{
		markers: make(map[stateKey]domain.RecordProcessingState),
		expiry:  make(map[stateKey]time.Time),
	}
}

var _ store.RecordProcessingStateStore = (*MemProcessingStateStore)(nil)

func (m *MemProcessingStateStore) SelectAttempt(_ context.Context, taskID int64, recordID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stateKey{taskID, recordID}
	if exp, ok := m.expiry[key]; !ok || time.Now().After(exp) {
		return 0, nil
	}
	return m.markers[key].AttemptNumber, nil
}

func (m *MemProcessingStateStore) InsertAttempt(_ context.Context, state *domain.RecordProcessingState, retention time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stateKey{state.TaskID, state.RecordID}
	m.markers[key] = *state
	m.expiry[key] = time.Now().Add(retention)
	return nil
}

func (m *MemProcessingStateStore) UpdateStage(_ context.Context, taskID int64, recordID string, stage domain.ProcessingStage, retention time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stateKey{taskID, recordID}
	marker, ok := m.markers[key]
	if !ok {
		return store.ErrRecordNotFound
	}
	marker.Stage = stage
	m.markers[key] = marker
	m.expiry[key] = time.Now().Add(retention)
	return nil
}

func (m *MemProcessingStateStore) PurgeExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	now := time.Now()
	for key, exp := range m.expiry {
		if now.After(exp) {
			delete(m.markers, key)
			delete(m.expiry, key)
			purged++
		}
	}
	return purged, nil
}

func (m *MemProcessingStateStore) RemoveForTask(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.markers {
		if key.taskID == taskID {
			delete(m.markers, key)
			delete(m.expiry, key)
		}
	}
	return nil
}

// MemErrorStore is an in-memory store.ErrorStore.
type MemErrorStore struct {
	mu            sync.Mutex
	counters      map[int64]map[uuid.UUID]*domain.ErrorCounter
	notifications map[int64][]domain.ErrorNotification
}

// NewMemErrorStore creates an empty MemErrorStore.
func NewMemErrorStore() *MemErrorStore {
	return &MemErrorStore{
		counters:      make(map[int64]map[uuid.UUID]*domain.ErrorCounter),
		notifications: make(map[int64][]domain.ErrorNotification),
	}
}

var _ store.ErrorStore = (*MemErrorStore)(nil)

func (m *MemErrorStore) IncrementCounter(_ context.Context, taskID int64, errorType uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters[taskID] == nil {
		m.counters[taskID] = make(map[uuid.UUID]*domain.ErrorCounter)
	}
	counter, ok := m.counters[taskID][errorType]
	if !ok {
		counter = &domain.ErrorCounter{TaskID: taskID, ErrorType: errorType, Message: message}
		m.counters[taskID][errorType] = counter
	}
	counter.Count++
	return nil
}

func (m *MemErrorStore) InsertNotification(_ context.Context, n *domain.ErrorNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[n.TaskID] = append(m.notifications[n.TaskID], *n)
	return nil
}

func (m *MemErrorStore) ErrorCount(_ context.Context, taskID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, counter := range m.counters[taskID] {
		total += counter.Count
	}
	return total, nil
}

func (m *MemErrorStore) CountForType(_ context.Context, taskID int64, errorType uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[taskID][errorType]; ok {
		return counter.Count, nil
	}
	return 0, nil
}

func (m *MemErrorStore) MessageForType(_ context.Context, taskID int64, errorType uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[taskID][errorType]; ok {
		return counter.Message, nil
	}
	return "", store.ErrNotFound
}

func (m *MemErrorStore) ListCounters(_ context.Context, taskID int64) ([]domain.ErrorCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ErrorCounter{}
	for _, counter := range m.counters[taskID] {
		out = append(out, *counter)
	}
	return out, nil
}

func (m *MemErrorStore) RemoveForTask(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counters, taskID)
	delete(m.notifications, taskID)
	return nil
}

// MemStatisticsStore is an in-memory store.StatisticsStore.
type MemStatisticsStore struct {
	mu      sync.Mutex
	general map[int64]map[[2]string]*domain.GeneralStatistics
	nodes   map[int64]map[[3]string]*domain.NodeStatistics
	attrs   map[int64]map[[4]string]*domain.AttributeStatistics
}

// NewMemStatisticsStore creates an empty MemStatisticsStore.
func NewMemStatisticsStore() *MemStatisticsStore {
	return &MemStatisticsStore{
		general: make(map[int64]map[[2]string]*domain.GeneralStatistics),
		nodes:   make(map[int64]map[[3]string]*domain.NodeStatistics),
		attrs:   make(map[int64]map[[4]string]*domain.AttributeStatistics),
	}
}

var _ store.StatisticsStore = (*MemStatisticsStore)(nil)

func (m *MemStatisticsStore) IncrementGeneral(_ context.Context, taskID int64, parentXpath, nodeXpath string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.general[taskID] == nil {
		m.general[taskID] = make(map[[2]string]*domain.GeneralStatistics)
	}
	key := [2]string{parentXpath, nodeXpath}
	g, ok := m.general[taskID][key]
	if !ok {
		g = &domain.GeneralStatistics{TaskID: taskID, ParentXpath: parentXpath, NodeXpath: nodeXpath}
		m.general[taskID][key] = g
	}
	g.Occurrence += delta
	return nil
}

func (m *MemStatisticsStore) SearchGeneral(_ context.Context, taskID int64) ([]domain.GeneralStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.GeneralStatistics{}
	for _, g := range m.general[taskID] {
		out = append(out, *g)
	}
	return out, nil
}

func (m *MemStatisticsStore) SearchGeneralByNode(_ context.Context, taskID int64, parentXpath, nodeXpath string) ([]domain.GeneralStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.GeneralStatistics{}
	if g, ok := m.general[taskID][[2]string{parentXpath, nodeXpath}]; ok {
		out = append(out, *g)
	}
	return out, nil
}

func (m *MemStatisticsStore) IncrementNodeValue(_ context.Context, taskID int64, parentXpath, nodeXpath, nodeValue string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes[taskID] == nil {
		m.nodes[taskID] = make(map[[3]string]*domain.NodeStatistics)
	}
	key := [3]string{parentXpath, nodeXpath, nodeValue}
	n, ok := m.nodes[taskID][key]
	if !ok {
		n = &domain.NodeStatistics{TaskID: taskID, ParentXpath: parentXpath, NodeXpath: nodeXpath, NodeValue: nodeValue}
		m.nodes[taskID][key] = n
	}
	n.Occurrence += delta
	return nil
}

func (m *MemStatisticsStore) NodeStatistics(_ context.Context, taskID int64, parentXpath, nodeXpath string) ([]domain.NodeStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.NodeStatistics{}
	for key, n := range m.nodes[taskID] {
		if key[0] == parentXpath && key[1] == nodeXpath {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *MemStatisticsStore) IncrementAttribute(_ context.Context, taskID int64, nodeXpath, nodeValue, attrName, attrValue string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attrs[taskID] == nil {
		m.attrs[taskID] = make(map[[4]string]*domain.AttributeStatistics)
	}
	key := [4]string{nodeXpath, nodeValue, attrName, attrValue}
	a, ok := m.attrs[taskID][key]
	if !ok {
		a = &domain.AttributeStatistics{Name: attrName, Value: attrValue}
		m.attrs[taskID][key] = a
	}
	a.Occurrence += delta
	return nil
}

func (m *MemStatisticsStore) AttributeStatistics(_ context.Context, taskID int64, nodeXpath, nodeValue string) ([]domain.AttributeStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.AttributeStatistics{}
	for key, a := range m.attrs[taskID] {
		if key[0] == nodeXpath && key[1] == nodeValue {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MemStatisticsStore) RemoveForTask(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.general, taskID)
	delete(m.nodes, taskID)
	delete(m.attrs, taskID)
	return nil
}

type harvestedKey struct {
	datasetID string
	localID   string
}

// MemHarvestedRecordStore is an in-memory store.HarvestedRecordStore.
type MemHarvestedRecordStore struct {
	mu      sync.Mutex
	records map[harvestedKey]domain.HarvestedRecord
}

// NewMemHarvestedRecordStore creates an empty MemHarvestedRecordStore.
func NewMemHarvestedRecordStore() *MemHarvestedRecordStore {
	return &MemHarvestedRecordStore{records: make(map[harvestedKey]domain.HarvestedRecord)}
}

var _ store.HarvestedRecordStore = (*MemHarvestedRecordStore)(nil)

func (m *MemHarvestedRecordStore) Insert(_ context.Context, r *domain.HarvestedRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	bucket, err := bucketing.HashBucket(r.LocalID, bucketing.HarvestedRecordBuckets)
	if err != nil {
		return err
	}
	r.BucketNumber = bucket
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[harvestedKey{r.DatasetID, r.LocalID}] = *r
	return nil
}

func (m *MemHarvestedRecordStore) update(datasetID, localID string, apply func(*domain.HarvestedRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := harvestedKey{datasetID, localID}
	r, ok := m.records[key]
	if !ok {
		return store.ErrHarvestedRecordNotFound
	}
	apply(&r)
	m.records[key] = r
	return nil
}

func (m *MemHarvestedRecordStore) UpdateLatestHarvest(_ context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return m.update(datasetID, localID, func(r *domain.HarvestedRecord) {
		r.LatestHarvestDate = &date
		r.LatestHarvestMD5 = md5
	})
}

func (m *MemHarvestedRecordStore) UpdatePreviewHarvest(_ context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return m.update(datasetID, localID, func(r *domain.HarvestedRecord) {
		r.PreviewHarvestDate = &date
		r.PreviewHarvestMD5 = md5
	})
}

func (m *MemHarvestedRecordStore) UpdatePublishedHarvest(_ context.Context, datasetID, localID string, date time.Time, md5 string) error {
	return m.update(datasetID, localID, func(r *domain.HarvestedRecord) {
		r.PublishedHarvestDate = &date
		r.PublishedHarvestMD5 = md5
	})
}

func (m *MemHarvestedRecordStore) UpdateIndexingDate(_ context.Context, datasetID, localID string, date time.Time) error {
	return m.update(datasetID, localID, func(r *domain.HarvestedRecord) {
		r.IndexingDate = &date
	})
}

func (m *MemHarvestedRecordStore) FindRecord(_ context.Context, datasetID, localID string) (*domain.HarvestedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[harvestedKey{datasetID, localID}]
	if !ok {
		return nil, store.ErrHarvestedRecordNotFound
	}
	return &r, nil
}

func (m *MemHarvestedRecordStore) FetchBucket(_ context.Context, datasetID string, bucket int) ([]domain.HarvestedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.HarvestedRecord{}
	for key, r := range m.records {
		if key.datasetID == datasetID && r.BucketNumber == bucket {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalID < out[j].LocalID })
	return out, nil
}

func (m *MemHarvestedRecordStore) Delete(_ context.Context, datasetID, localID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, harvestedKey{datasetID, localID})
	return nil
}
