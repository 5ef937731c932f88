package workerproc

import (
	"context"

	"github.com/PenumbraOS/pinitd-sub000/internal/registry"
)

// registryHandle adapts *Manager to registry.WorkerHandle, converting the
// concrete *rpclink.Link it returns into the interface the controller
// registry depends on (keeping registry free of an rpclink import).
type registryHandle struct{ m *Manager }

// AsRegistryHandle exposes m as a registry.WorkerHandle.
func (m *Manager) AsRegistryHandle() registry.WorkerHandle {
	return registryHandle{m: m}
}

func (h registryHandle) CurrentLink() registry.WorkerLink {
	l := h.m.CurrentLink()
	if l == nil {
		return nil
	}
	return l
}

func (h registryHandle) WaitConnected(ctx context.Context) (registry.WorkerLink, error) {
	l, err := h.m.WaitConnected(ctx)
	if err != nil {
		return nil, err
	}
	return l, nil
}
