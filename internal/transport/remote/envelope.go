// Package remote carries data portal requests across a process boundary as JSON
// over HTTP. Client implements transport.Proxy; Host serves it in front of a router.
package remote

import (
	"encoding/json"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// RequestEnvelope is the wire form of a portal request.
type RequestEnvelope struct {
	Operation   portal.Operation  `json:"operation"`
	Type        string            `json:"type"`
	Criteria    *CriteriaEnvelope `json:"criteria,omitempty"`
	Graph       *domain.Document  `json:"graph,omitempty"`
	ForceUpdate bool              `json:"force_update,omitempty"`
	// Context is the sealed JSON form of portal.Context.
	Context []byte `json:"context"`
}

// CriteriaEnvelope carries a criteria value with the registry key of its type.
type CriteriaEnvelope struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ResponseEnvelope is the wire form of a portal response. Error and Graph are
// never both set.
type ResponseEnvelope struct {
	Graph *domain.Document `json:"graph,omitempty"`
	// Global is the sealed JSON form of the global context values.
	Global []byte         `json:"global,omitempty"`
	Error  *ErrorEnvelope `json:"error,omitempty"`
}

// ErrorEnvelope is the wire form of the portal error taxonomy.
type ErrorEnvelope struct {
	Kind        string             `json:"kind"`
	Message     string             `json:"message"`
	Operation   portal.Operation   `json:"operation,omitempty"`
	Type        string             `json:"type,omitempty"`
	Handler     portal.HandlerKind `json:"handler,omitempty"`
	Criteria    string             `json:"criteria,omitempty"`
	Principal   string             `json:"principal,omitempty"`
	ObjectID    string             `json:"object_id,omitempty"`
	Step        string             `json:"step,omitempty"`
	Level       int                `json:"level,omitempty"`
	ParentLevel int                `json:"parent_level,omitempty"`
}

func associatedData(op portal.Operation, typeName string) []byte {
	return []byte(string(op) + "|" + typeName)
}
