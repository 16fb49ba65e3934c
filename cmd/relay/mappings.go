package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"relay/internal/dispatch"
	"relay/internal/routing"
)

// printMappings writes one row per mapping in configuration order. names may
// be nil, in which case only ids are printed.
func printMappings(ctx context.Context, out io.Writer, mappings []routing.Mapping, names *dispatch.NameCache) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if names != nil {
		fmt.Fprintln(w, "SOURCE\tSOURCE NAME\tTARGET\tTARGET NAME")
	} else {
		fmt.Fprintln(w, "SOURCE\tTARGET")
	}

	for _, m := range mappings {
		from := routing.Destination{TargetID: m.SourceID, TargetTopicID: m.SourceTopicID}
		to := routing.Destination{TargetID: m.TargetID, TargetTopicID: m.TargetTopicID}
		if names != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", from, names.Name(ctx, m.SourceID), to, names.Name(ctx, m.TargetID))
		} else {
			fmt.Fprintf(w, "%s\t%s\n", from, to)
		}
	}

	return w.Flush()
}
