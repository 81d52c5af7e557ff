package convert

import (
	"time"

	"github.com/lkarlslund/snaphound/modules/bloodhound"
	"github.com/lkarlslund/snaphound/modules/cli"
	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	Command = &cobra.Command{
		Use:   "convert [snapshot.dat]",
		Short: "Converts an AD Explorer snapshot to a BloodHound compatible archive",
		Args:  cobra.ExactArgs(1),
	}

	output      = Command.Flags().String("output", "", "Archive to write, a .lz4 suffix switches compression (default next to the snapshot)")
	compression = Command.Flags().Int("compression", bloodhound.DefaultCompression, "Gzip compression level (1 fastest to 9 smallest)")
	edgerules   = Command.Flags().String("edgerules", "", "JSON file with a custom ACL edge rule table (default built-in rules)")
	parallel    = Command.Flags().Int("parallel", 0, "Number of concurrent object decoders (0 means one per core)")
)

func init() {
	cli.Root.AddCommand(Command)
	Command.RunE = Execute
}

func Execute(cmd *cobra.Command, args []string) error {
	starttime := time.Now()

	rules := bloodhound.BuiltinRules()
	if *edgerules != "" {
		var err error
		rules, err = bloodhound.LoadRuleTable(*edgerules)
		if err != nil {
			return errors.Wrapf(err, "problem loading edge rules from %v", *edgerules)
		}
		ui.Info().Msgf("Using edge rule table %v (%v rules, version %v)", *edgerules, len(rules.Rules), rules.Version)
	}

	path := args[0]
	snap, err := snapshot.LoadFile(path, *parallel)
	if err != nil {
		return errors.Wrapf(err, "problem loading snapshot from %v", path)
	}
	snap.Diagnostics.Log()

	report := bloodhound.Generate(snap, rules)

	outputname := *output
	if outputname == "" {
		outputname = bloodhound.DefaultOutputName(path)
	}

	err = report.WriteFile(outputname, *compression)
	if err != nil {
		return errors.Wrapf(err, "problem writing archive to %v", outputname)
	}

	ui.Info().Msgf("Converted %v objects from %v to %v in %v",
		len(snap.Objects), path, outputname, time.Since(starttime).Round(time.Millisecond))

	return nil
}
