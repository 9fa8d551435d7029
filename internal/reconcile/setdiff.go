package reconcile

// setPlan is the mutation set that makes a component collection set-equal,
// by identity key, to an incoming report collection.
type setPlan[K comparable, V any] struct {
	Delete  []K
	Upsert  []V
	Created int
	Updated int
}

// planSet diffs existing against incoming by key. Duplicate keys in incoming
// collapse to the last entry; upserts keep first-appearance order.
func planSet[K comparable, V any](existing, incoming []V, key func(V) K) setPlan[K, V] {
	var plan setPlan[K, V]

	have := make(map[K]struct{}, len(existing))
	for _, v := range existing {
		have[key(v)] = struct{}{}
	}

	pos := make(map[K]int, len(incoming))
	for _, v := range incoming {
		k := key(v)
		if i, ok := pos[k]; ok {
			plan.Upsert[i] = v
			continue
		}
		pos[k] = len(plan.Upsert)
		plan.Upsert = append(plan.Upsert, v)
		if _, ok := have[k]; ok {
			plan.Updated++
		} else {
			plan.Created++
		}
	}

	for _, v := range existing {
		k := key(v)
		if _, keep := pos[k]; !keep {
			plan.Delete = append(plan.Delete, k)
			// delete a repeated key once
			pos[k] = -1
		}
	}
	return plan
}
