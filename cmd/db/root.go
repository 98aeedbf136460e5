package db

import (
	"github.com/JonasWeidner/oDB/cmd/util"
	"github.com/JonasWeidner/oDB/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.RPCClient

	// DatabaseCommands represents the db command group
	DatabaseCommands = &cobra.Command{
		Use:               "db",
		Short:             "Perform object store operations against a running server",
		PersistentPreRunE: setupClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the db command
	util.SetupRPCClientFlags(DatabaseCommands)

	// The object store adapter is mounted at shard 0
	DatabaseCommands.PersistentFlags().Int("shard", 0, util.WrapString("ID of the shard to connect to"))

	// Add subcommands
	DatabaseCommands.AddCommand(openCmd)
	DatabaseCommands.AddCommand(closeCmd)
	DatabaseCommands.AddCommand(destroyCmd)
	DatabaseCommands.AddCommand(getCmd)
	DatabaseCommands.AddCommand(countCmd)
	DatabaseCommands.AddCommand(keysCmd)
	DatabaseCommands.AddCommand(recordsCmd)
	DatabaseCommands.AddCommand(putAtCmd)
	DatabaseCommands.AddCommand(addAtCmd)
	DatabaseCommands.AddCommand(putCmd)
	DatabaseCommands.AddCommand(addCmd)
	DatabaseCommands.AddCommand(insertCmd)
	DatabaseCommands.AddCommand(replaceCmd)
	DatabaseCommands.AddCommand(delCmd)
	DatabaseCommands.AddCommand(delRangeCmd)
	DatabaseCommands.AddCommand(clearCmd)
	DatabaseCommands.AddCommand(indexRecordsCmd)
	DatabaseCommands.AddCommand(indexKeysCmd)
	DatabaseCommands.AddCommand(indexCountCmd)
	DatabaseCommands.AddCommand(perfTestCmd)
}

// setupClient initializes the RPC client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the object store client
	rpcClient, err = client.NewRPCClient(
		shardId,
		*config,
		t,
		s,
	)

	return err
}
