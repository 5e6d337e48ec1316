package transform

import (
	"runtime"
	"sync"

	"github.com/inodb/adna-downsample/internal/genotype"
)

// chunkSize is the number of loci handled per work item.
const chunkSize = 4096

// WorkItem holds a contiguous block of loci and their pre-drawn choices.
type WorkItem struct {
	Seq     int
	Loci    genotype.Dataset
	Choices []int // -1 for loci that draw nothing
}

// WorkResult holds the collapsed block for a work item.
type WorkResult struct {
	Seq  int
	Loci genotype.Dataset
}

// HaploidizeParallel is Haploidize spread over a pool of workers. Coins are
// drawn from src sequentially in locus order before any work is handed
// out, so the result is identical to Haploidize for the same source state.
// If workers is 0, runtime.NumCPU() is used.
func HaploidizeParallel(d genotype.Dataset, src Source, workers int) genotype.Dataset {
	if len(d) == 0 {
		return d.Clone()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	choices := make([]int, len(d))
	for i := range d {
		if d[i].IsMissing() {
			choices[i] = -1
			continue
		}
		choices[i] = src.Intn(2)
	}

	items := make(chan WorkItem, 2*workers)
	go func() {
		defer close(items)
		for seq, start := 0, 0; start < len(d); seq, start = seq+1, start+chunkSize {
			end := min(start+chunkSize, len(d))
			items <- WorkItem{Seq: seq, Loci: d[start:end], Choices: choices[start:end]}
		}
	}()

	out := make(genotype.Dataset, 0, len(d))
	OrderedCollect(collapseWorkers(items, workers), func(r WorkResult) {
		out = append(out, r.Loci...)
	})
	return out
}

// collapseWorkers applies the drawn choices using a pool of workers.
// Results are sent in arrival order (not sequence order).
func collapseWorkers(items <-chan WorkItem, workers int) <-chan WorkResult {
	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				block := item.Loci.Clone()
				for i, c := range item.Choices {
					if c >= 0 {
						collapse(&block[i], c)
					}
				}
				results <- WorkResult{Seq: item.Seq, Loci: block}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult)) {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			fn(rr)
		}
	}
}
