package simulation

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"capkv/internal/dsm"
)

type NodeResult struct {
	Node string
	Tally
	Iterations int
	Keys       int
}

// Result is the outcome of one variant's run.
type Result struct {
	Variant   dsm.Variant
	Nodes     []NodeResult
	Total     Tally
	Completed bool
	Elapsed   time.Duration
}

// Confirmed reports whether the run behaved as the variant's trade-off
// predicts: AP shows inconsistencies, CP and CA show none.
func (r Result) Confirmed() bool {
	if r.Variant == dsm.AP {
		return r.Total.Inconsistencies > 0
	}
	return r.Total.Inconsistencies == 0
}

func (r Result) Interpretation() string {
	n := r.Total.Inconsistencies
	switch {
	case r.Variant == dsm.AP && n > 0:
		return fmt.Sprintf("CONFIRMED: %d inconsistencies detected (typical for AP systems).", n)
	case r.Variant == dsm.AP:
		return "UNUSUAL: no inconsistencies detected."
	case n == 0:
		return "CONFIRMED: no inconsistencies (consistency guaranteed)."
	default:
		return fmt.Sprintf("ERROR: %d inconsistencies despite the consistency guarantee!", n)
	}
}

type Report struct {
	Nodes      int
	Iterations int
	Results    []Result
}

// WriteTo renders the report as plain text.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "DSM simulation with %d nodes and %d iterations\n", r.Nodes, r.Iterations)
	fmt.Fprintln(&b, "CAP theorem demonstration")

	for _, res := range r.Results {
		v := res.Variant.String()
		fmt.Fprintf(&b, "\n=== Test: %s (%s) ===\n", v, res.Variant.Description())

		for _, n := range res.Nodes {
			fmt.Fprintf(&b, "[%s] node %s: %d reads, %d writes, %d failed, %d inconsistencies detected\n",
				v, n.Node, n.Reads, n.Writes, n.Failures, n.Inconsistencies)
		}

		fmt.Fprintf(&b, "\n[%s] SUMMARY:\n", v)
		fmt.Fprintf(&b, "[%s] total reads: %d\n", v, res.Total.Reads)
		fmt.Fprintf(&b, "[%s] total writes: %d\n", v, res.Total.Writes)
		fmt.Fprintf(&b, "[%s] total failed operations: %d\n", v, res.Total.Failures)
		fmt.Fprintf(&b, "[%s] total inconsistencies: %d\n", v, res.Total.Inconsistencies)
		if res.Total.Reads > 0 && res.Total.Writes > 0 {
			fmt.Fprintf(&b, "[%s] read/write ratio: %.2f\n", v, float64(res.Total.Reads)/float64(res.Total.Writes))
			if len(res.Nodes) > 0 {
				fmt.Fprintf(&b, "[%s] operations per node: %d\n", v, (res.Total.Reads+res.Total.Writes)/len(res.Nodes))
			}
		}
		if !res.Completed {
			fmt.Fprintf(&b, "[%s] time limit reached before every app finished\n", v)
		}
		fmt.Fprintf(&b, "[%s] %s\n", v, res.Interpretation())
	}

	fmt.Fprintln(&b, "\n=== Conclusion ===")
	fmt.Fprintln(&b, "CAP theorem demonstrated:")
	fmt.Fprintln(&b, "- AP: available, but inconsistent")
	fmt.Fprintln(&b, "- CP: consistent, but blocks during partitions")
	fmt.Fprintln(&b, "- CA: consistent and available without partitions")

	return b.WriteTo(w)
}
