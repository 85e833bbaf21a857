package http

import (
	"context"
	"net/http"

	"shadowledger/internal/infrastructure/lnd"
)

// NodeInfoSource is the subset of the node client used here.
type NodeInfoSource interface {
	GetInfo(ctx context.Context) (*lnd.Info, error)
}

type NodeHandler struct {
	node NodeInfoSource
}

func NewNodeHandler(node NodeInfoSource) *NodeHandler {
	return &NodeHandler{node: node}
}

// HandleInfo proxies the node's getinfo; 502 when the node is unreachable.
func (h *NodeHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.node.GetInfo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
