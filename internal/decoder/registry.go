// Package decoder implements the topic0 -> descriptor registry and the
// indexed/non-indexed ABI decode procedure spec §4.4 describes,
// generalizing the teacher's single hard-coded ERC-20 Transfer ABI
// (geth/09-events, geth/geth-25-toolbox) into a registry covering every
// standard spec §4.4 names.
package decoder

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// ParamSpec describes one event parameter in ABI declaration order.
// Indexed reflects the *declared* ABI indexing; Decode falls back to
// treating a declared-indexed param as data-sourced when fewer topics
// are present than declared indexed params expect — this is what lets
// one descriptor (Transfer) serve both the 3-topic ERC-20 and 4-topic
// ERC-721 wire shapes spec §4.3/§8 scenario 1-2 describe, without a
// name-based special case.
type ParamSpec struct {
	Name    string
	Type    string // canonical ABI type name: "address", "uint256", "bool", "bytes32", "string", "bytes", ...
	Indexed bool
}

// Descriptor is one entry in the signature registry (spec §3 "Signature
// registry", §4.4).
type Descriptor struct {
	Topic0             string
	Name               string
	CanonicalSignature string
	StandardTag        string
	Params             []ParamSpec
}

// Registry is the process-wide topic0 -> Descriptor map described in
// spec §4.4. It is built once at startup from the hard-coded table and
// an optional DB-loaded overlay, then treated as read-only except for
// the admin AddEventSignature operation (spec §9 "late-bound lookup").
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// NewRegistry builds a registry from the hard-coded standard-events
// table. Callers that have a function_signatures table should follow
// with LoadSignatureRows.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]Descriptor, len(standardEvents))}
	for _, d := range standardEvents {
		r.entries[d.Topic0] = d
	}
	return r
}

// SignatureRow is one row of the optional external function_signatures
// table (spec §3/§6), filtered to type="event" by the caller before
// calling LoadSignatureRows.
type SignatureRow struct {
	Topic0             string
	Name               string
	CanonicalSignature string
	Params             []ParamSpec
}

// LoadSignatureRows merges DB-sourced descriptors into the registry.
// Hard-coded entries take precedence on key collision, per spec §4.4:
// "Hard-coded entries take precedence on key collision."
func (r *Registry) LoadSignatureRows(rows []SignatureRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		topic0 := strings.ToLower(row.Topic0)
		if _, exists := r.entries[topic0]; exists {
			continue
		}
		r.entries[topic0] = Descriptor{
			Topic0:             topic0,
			Name:               row.Name,
			CanonicalSignature: row.CanonicalSignature,
			StandardTag:        "registry",
			Params:             row.Params,
		}
	}
}

// AddEventSignature is the operator-controlled admin operation spec
// §4.4 names: "A separate admin operation add_event_signature(topic0,
// descriptor) lets operators register custom events at runtime." It is
// best-effort visible to subsequent decodes (spec §9), meaning a decode
// already in flight when this runs may not see it.
func (r *Registry) AddEventSignature(topic0 string, d Descriptor) {
	topic0 = strings.ToLower(topic0)
	d.Topic0 = topic0
	r.mu.Lock()
	r.entries[topic0] = d
	r.mu.Unlock()
}

func (r *Registry) lookup(topic0 string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[strings.ToLower(topic0)]
	return d, ok
}

// topic0Of computes Keccak-256(canonicalSignature) the way every entry
// in the hard-coded table is derived (glossary: "Topic0").
func topic0Of(canonicalSignature string) string {
	return strings.ToLower(crypto.Keccak256Hash([]byte(canonicalSignature)).Hex())
}
