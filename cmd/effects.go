package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/opticsim/opticsim/sim"
)

var effectsCmd = &cobra.Command{
	Use:   "effects",
	Short: "List the effects of the configured optical train",
	Long:  "Load the configuration and print every effect with its element, class, include flag and z-orders.",
	Run: func(cmd *cobra.Command, args []string) {
		cmds, err := loadCommands()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		docs, err := cmds.Documents()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		optics, err := sim.NewOpticsManager(docs, cmds, nil)
		if err != nil {
			logrus.Fatalf("loading optics: %v", err)
		}
		writeEffectsTable(os.Stdout, optics.ListEffects())
	},
}

// writeEffectsTable prints rows as aligned columns.
func writeEffectsTable(out io.Writer, rows []sim.EffectRow) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ELEMENT\tNAME\tCLASS\tINCLUDED\tZ_ORDER")
	for _, r := range rows {
		z := make([]string, len(r.ZOrders))
		for i, v := range r.ZOrders {
			z[i] = fmt.Sprint(v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", r.Element, r.Name, r.Class, r.Included, strings.Join(z, ","))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(effectsCmd)
}
