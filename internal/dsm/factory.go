package dsm

import (
	"fmt"

	"capkv/internal/configuration"
	"capkv/internal/domain"
)

// Replica is a node of any variant.
type Replica interface {
	domain.Replica
	Variant() Variant
	Store() domain.Store
}

var (
	_ Replica = (*APNode)(nil)
	_ Replica = (*CPNode)(nil)
	_ Replica = (*CANode)(nil)
)

// New builds a node of the given variant, configured from its section of cfg.
func New(v Variant, id string, endpoint domain.Endpoint, cfg *configuration.Properties, opts ...Option) (Replica, error) {
	switch v {
	case AP:
		return NewAP(id, endpoint, &cfg.AP, opts...), nil
	case CP:
		return NewCP(id, endpoint, &cfg.CP, opts...), nil
	case CA:
		return NewCA(id, endpoint, &cfg.CA, opts...), nil
	default:
		return nil, fmt.Errorf("new node %s: unknown variant %d", id, v)
	}
}
