// Package pipeline contains the work partitioner, the per-batch processor
// and the dispatcher that drives a pool of workers over the remaining
// corpus.
package pipeline

// Remaining computes the not-yet-processed ids: the manifest universe
// minus the checkpointed done-set, preserving manifest order. Pure and
// side-effect free, so it can be re-invoked mid-run against a fresh
// done-set.
func Remaining(all []string, done map[string]struct{}) []string {
	var out []string
	for _, id := range all {
		if _, ok := done[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Batches slices ids into batches of at most size, preserving order.
func Batches(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
