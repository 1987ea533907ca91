package cmd

import (
	"fmt"

	"github.com/rm01-labs/cardmaker/internal/naming"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the models available on the master disk",
	Long:  "Scans the master disk's model catalog and prints each bucket. Works without a card inserted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := buildOrchestrator()

		cat, err := orch.ScanCatalog(cmd.Context())
		if err != nil {
			return err
		}

		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		if manufacturer != "" {
			printBucket(manufacturer, cat.FilterManufacturer(manufacturer))
			return nil
		}

		total := 0
		for _, class := range []naming.Class{naming.ClassLLM, naming.ClassEmbedding, naming.ClassReranker} {
			bucket := cat.ByClass(class)
			total += len(bucket)
			printBucket(string(class)+" models", bucket)
		}

		if total == 0 {
			fmt.Println("no models found on the master disk")
		}

		return nil
	},
}

func init() {
	catalogCmd.Flags().String("manufacturer", "", `Only list one manufacturer's models ("Other" selects unrecognized names)`)
}

func printBucket(header string, bucket []naming.Identity) {
	if len(bucket) == 0 {
		return
	}

	fmt.Printf("%s:\n", header)
	for i, id := range bucket {
		fmt.Printf("  %2d. %s\n", i+1, id.FullName)
	}
}
