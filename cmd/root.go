package cmd

import (
	"fmt"
	"os"

	"github.com/JonasWeidner/oDB/cmd/db"
	"github.com/JonasWeidner/oDB/cmd/serve"
	"github.com/JonasWeidner/oDB/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "odb",
		Short: "transactional object store with secondary indexes",
		Long: fmt.Sprintf(`oDB (v%s)

A transactional, versioned object store with typed keys and secondary
indexes, served over RPC. Databases are declared via schemas and
reconciled on open.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of oDB",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("oDB v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(db.DatabaseCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
