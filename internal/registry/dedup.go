package registry

import "time"

// DedupRetention bounds how long a delivery ID is remembered. The
// verification freshness window is much shorter, so entries past this
// age can never correspond to an acceptable delivery.
const DedupRetention = 10 * time.Minute

// CheckDelivery reports whether deliveryID is new within the
// retention window, recording it if so. An empty ID means the caller
// had no delivery identifier; such deliveries are neither recorded
// nor rejected. Expired entries are purged opportunistically on each
// call.
func (r *Registry) CheckDelivery(deliveryID string, now time.Time) bool {
	if deliveryID == "" {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.deliveries[deliveryID]; seen {
		return false
	}
	r.deliveries[deliveryID] = now

	cutoff := now.Add(-DedupRetention)
	for id, firstSeen := range r.deliveries {
		if firstSeen.Before(cutoff) {
			delete(r.deliveries, id)
		}
	}
	return true
}
