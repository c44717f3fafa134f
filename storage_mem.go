package muzero

import (
	"fmt"
	"sync"
)

// MemStorage is an in-process SharedStorage backed by a
// map.
//
// Every SetInfo mapping is applied under one lock, so a
// concurrent reader sees either none or all of a call's
// values. Stored values are treated as immutable
// snapshots: writers must hand over copies they will not
// mutate afterwards.
type MemStorage struct {
	// SaveFunc, when non-nil, persists a consistent
	// snapshot of the store on SaveCheckpoint.
	SaveFunc func(info map[string]interface{}) error

	lock sync.RWMutex
	info map[string]interface{}
}

// NewMemStorage creates a store seeded with the
// checkpoint fields, zeroed metrics, and the progress
// counters a trainer polls.
func NewMemStorage(ckpt *Checkpoint) *MemStorage {
	info := map[string]interface{}{
		KeyWeights:        Weights(nil),
		KeyOptimizerState: (*OptimizerState)(nil),
		KeyTrainingStep:   0,
		KeyLR:             float64(0),

		KeyTotalLoss:          float64(0),
		KeyValueLoss:          float64(0),
		KeyRewardLoss:         float64(0),
		KeyPolicyLoss:         float64(0),
		KeyReconstructionLoss: float64(0),
		KeyConsistencyLoss:    float64(0),
		KeyRewardPredError:    []float64(nil),
		KeyValuePredError:     []float64(nil),

		KeyNumPlayedGames: 0,
		KeyNumPlayedSteps: 0,
		KeyTerminate:      false,
	}
	if ckpt != nil {
		if ckpt.Weights != nil {
			info[KeyWeights] = ckpt.Weights.Copy()
		}
		if ckpt.OptimizerState != nil {
			info[KeyOptimizerState] = ckpt.OptimizerState.Copy()
		}
		info[KeyTrainingStep] = ckpt.TrainingStep
	}
	return &MemStorage{info: info}
}

// GetInfo reads one field.
func (m *MemStorage) GetInfo(key string) (interface{}, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	val, ok := m.info[key]
	if !ok {
		return nil, fmt.Errorf("no such storage key: %q", key)
	}
	return val, nil
}

// SetInfo applies one mapping atomically.
func (m *MemStorage) SetInfo(values map[string]interface{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for k, v := range values {
		m.info[k] = v
	}
	return nil
}

// Snapshot copies the whole store under one read lock,
// yielding a consistent view across keys.
func (m *MemStorage) Snapshot() map[string]interface{} {
	m.lock.RLock()
	defer m.lock.RUnlock()
	res := make(map[string]interface{}, len(m.info))
	for k, v := range m.info {
		res[k] = v
	}
	return res
}

// SaveCheckpoint invokes SaveFunc on a snapshot.
// Without a SaveFunc it is a no-op.
func (m *MemStorage) SaveCheckpoint() error {
	if m.SaveFunc == nil {
		return nil
	}
	return m.SaveFunc(m.Snapshot())
}
