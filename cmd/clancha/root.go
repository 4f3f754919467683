package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clancha",
		Short: "Co-parenting message rewriter",
		Long: `clancha rewrites co-parenting drafts into a calm or firm tone.

Commands:
  classify  Run the safeguard classifier on a draft
  serve     Serve the rewrite endpoint and Prometheus metrics over HTTP`,
		SilenceUsage: true,
	}
	root.AddCommand(newClassifyCmd(), newServeCmd())
	return root
}
