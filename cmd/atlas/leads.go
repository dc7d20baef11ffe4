package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"atlas-g/protocol/pkg/cli"
	"atlas-g/protocol/pkg/config"
)

var leadsFlags struct {
	limit int
}

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Review captured contact submissions",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent leads",
	RunE:  listLeads,
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsListCmd)

	leadsListCmd.Flags().IntVar(&leadsFlags.limit, "limit", 20, "max results")
}

func listLeads(cmd *cobra.Command, _ []string) error {
	store, err := openLeads(config.MustGetConfig().Leads)
	if err != nil {
		return cli.NewCommandError("leads list", err)
	}
	defer store.Close()

	list, err := store.List(cmd.Context(), leadsFlags.limit)
	if err != nil {
		return cli.NewCommandError("leads list", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tNAME\tEMAIL\tSTATUS")
	for _, l := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.Timestamp.Format("2006-01-02 15:04"), l.Name, l.Email, l.Status)
	}
	return tw.Flush()
}
