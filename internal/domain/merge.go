package domain

// MergeCarts reconciles two divergent snapshots of the same cart after a
// version conflict on the durable mirror. The policy is a union merge: every
// line present in either snapshot survives, duplicated product ids keep the
// larger quantity, and shelf membership wins over an active-line duplicate so
// the cart/shelf disjointness invariant holds. Line order follows the local
// snapshot with remote-only lines appended.
func MergeCarts(local, remote Cart) Cart {
	merged := Cart{
		ID:     firstNonEmptyString(local.ID, remote.ID),
		UserID: firstNonEmptyString(local.UserID, remote.UserID),
	}
	merged.Saved = mergeLineSets(local.Saved, remote.Saved)

	shelf := make(map[string]struct{}, len(merged.Saved))
	for _, line := range merged.Saved {
		shelf[line.ProductID] = struct{}{}
	}
	for _, line := range mergeLineSets(local.Items, remote.Items) {
		if _, onShelf := shelf[line.ProductID]; onShelf {
			continue
		}
		merged.Items = append(merged.Items, line)
	}

	merged.Version = local.Version
	if remote.Version > merged.Version {
		merged.Version = remote.Version
	}
	merged.UpdatedAt = local.UpdatedAt
	if remote.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = remote.UpdatedAt
	}
	return merged
}

func mergeLineSets(local, remote []CartLine) []CartLine {
	merged := make([]CartLine, 0, len(local)+len(remote))
	index := make(map[string]int, len(local))
	for _, line := range local {
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	for _, line := range remote {
		at, ok := index[line.ProductID]
		if !ok {
			index[line.ProductID] = len(merged)
			merged = append(merged, line)
			continue
		}
		if line.Quantity > merged[at].Quantity {
			merged[at].Quantity = line.Quantity
		}
	}
	return merged
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
