package commands

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
)

type summary struct {
	Events   int
	Rejected int
	LastSeq  int64
	Head     int64

	Reviews  map[string]int
	Sessions map[string]int
	Active   int
}

func summarize(state projection.State) summary {
	s := summary{
		Reviews:  make(map[string]int),
		Sessions: make(map[string]int),
		Active:   len(state.ActiveSessions()),
	}
	for _, r := range state.Reviews {
		s.Reviews[string(r.Status)]++
	}
	for _, ss := range state.Sessions {
		s.Sessions[string(ss.Status)]++
	}
	return s
}

func writeSummary(w io.Writer, s summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if s.Events > 0 {
		fmt.Fprintf(tw, "events\t%d\n", s.Events)
		fmt.Fprintf(tw, "rejected\t%d\n", s.Rejected)
		fmt.Fprintf(tw, "last seq\t%d of %d\n", s.LastSeq, s.Head)
	}
	fmt.Fprintf(tw, "reviews\t%d\n", total(s.Reviews))
	for _, k := range sortedKeys(s.Reviews) {
		fmt.Fprintf(tw, "  %s\t%d\n", k, s.Reviews[k])
	}
	fmt.Fprintf(tw, "sessions\t%d (%d active)\n", total(s.Sessions), s.Active)
	for _, k := range sortedKeys(s.Sessions) {
		fmt.Fprintf(tw, "  %s\t%d\n", k, s.Sessions[k])
	}
	return tw.Flush()
}

func total(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
