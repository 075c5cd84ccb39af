package pxdata

import (
	"sync"

	"pxfeed/internal/model"
)

// ContractDirectory stores resolved contracts by the id of the request that
// resolved them.
type ContractDirectory struct {
	mu        sync.RWMutex
	contracts map[model.RequestID]model.Contract
}

func NewContractDirectory() *ContractDirectory {
	return &ContractDirectory{
		contracts: make(map[model.RequestID]model.Contract),
	}
}

// Record stores the contract. A second call for the same id overwrites.
func (d *ContractDirectory) Record(id model.RequestID, contract model.Contract) {
	d.mu.Lock()
	d.contracts[id] = contract
	d.mu.Unlock()
}

func (d *ContractDirectory) Lookup(id model.RequestID) (model.Contract, bool) {
	d.mu.RLock()
	contract, ok := d.contracts[id]
	d.mu.RUnlock()
	return contract, ok
}

func (d *ContractDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.contracts)
}
