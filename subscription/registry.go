// Package subscription tracks which connected observers want which topics.
// The registry exclusively owns Subscription entries; the transport layer
// holds only connection handles.
package subscription

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/asset-tracking/bus"
)

// Topic is a subscription filter. The zero value matches every event; with
// AssetType set it matches that type; with both set it matches one asset.
type Topic struct {
	AssetType string `json:"assetType,omitempty"`
	AssetID   string `json:"assetId,omitempty"`
}

// ErrInvalidTopic is returned for an asset id filter without an asset type.
var ErrInvalidTopic = errors.New("subscription: assetId filter requires assetType")

// Validate checks the filter is one of the three supported shapes.
func (t Topic) Validate() error {
	if t.AssetID != "" && t.AssetType == "" {
		return ErrInvalidTopic
	}
	return nil
}

// Matches reports whether an event falls under this filter.
func (t Topic) Matches(ev bus.Event) bool {
	if t.AssetType == "" {
		return true
	}
	if t.AssetType != ev.AssetType {
		return false
	}
	return t.AssetID == "" || t.AssetID == ev.AssetID
}

// Subscription is one observer interest. Created on a subscribe action,
// destroyed on unsubscribe or disconnect.
type Subscription struct {
	ID        string    `json:"subscriptionId"`
	ConnID    string    `json:"-"`
	Topic     Topic     `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry is a concurrent mapping of subscriptions, safe for simultaneous
// subscribe, unsubscribe and lookup.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Subscription
	byConn map[string]map[string]*Subscription
	now    func() time.Time
}

// NewRegistry creates an empty registry. A nil now selects time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		byID:   make(map[string]*Subscription),
		byConn: make(map[string]map[string]*Subscription),
		now:    now,
	}
}

// Subscribe registers a new interest for the connection.
func (r *Registry) Subscribe(connID string, t Topic) (Subscription, error) {
	if err := t.Validate(); err != nil {
		return Subscription{}, err
	}
	sub := &Subscription{
		ID:        uuid.NewString(),
		ConnID:    connID,
		Topic:     t,
		CreatedAt: r.now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sub.ID] = sub
	conns := r.byConn[connID]
	if conns == nil {
		conns = make(map[string]*Subscription)
		r.byConn[connID] = conns
	}
	conns[sub.ID] = sub
	return *sub, nil
}

// Unsubscribe removes one subscription. It reports whether the id existed.
func (r *Registry) Unsubscribe(subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byID[subID]
	if !ok {
		return false
	}
	delete(r.byID, subID)
	if conns := r.byConn[sub.ConnID]; conns != nil {
		delete(conns, subID)
		if len(conns) == 0 {
			delete(r.byConn, sub.ConnID)
		}
	}
	return true
}

// RemoveConnection drops every subscription owned by the connection and
// returns how many were removed. Cleanup is unconditional: after it returns
// no lookup can yield the connection.
func (r *Registry) RemoveConnection(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.byConn[connID]
	for id := range conns {
		delete(r.byID, id)
	}
	delete(r.byConn, connID)
	return len(conns)
}

// TopicsFor returns the topics the connection currently subscribes to.
func (r *Registry) TopicsFor(connID string) []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Topic
	for _, sub := range r.byConn[connID] {
		out = append(out, sub.Topic)
	}
	return out
}

// SubscribersFor returns the connections whose topics match the event.
// A connection with several matching topics appears once.
func (r *Registry) SubscribersFor(ev bus.Event) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for connID, conns := range r.byConn {
		for _, sub := range conns {
			if sub.Topic.Matches(ev) {
				out = append(out, connID)
				break
			}
		}
	}
	return out
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
