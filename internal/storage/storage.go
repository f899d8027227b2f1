// Package storage provides ConversationState stores for the workflow engine.
package storage

import (
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
)

// StateStore is re-exported from core/ports for store implementations.
type StateStore = ports.StateStore
