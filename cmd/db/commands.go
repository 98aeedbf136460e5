package db

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/JonasWeidner/oDB/lib/key"
	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/spf13/cobra"
)

// Keys and ranges are passed on the command line in their tagged JSON wire
// form, e.g. '{"type":"int","value":1}' for a key and
// '{"type":"lowerBound","value":{"type":"int","value":1},"open":false}' for
// a range. Commands with an optional range argument query the whole
// collection when the range is omitted.

var (
	openCmd = &cobra.Command{
		Use:   "open [schema-file]",
		Short: "Opens (or creates) a database from a schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var schema odb.Schema
			if err := json.Unmarshal(data, &schema); err != nil {
				return fmt.Errorf("invalid schema file: %w", err)
			}
			if err := rpcClient.Open(schema); err != nil {
				return err
			}
			fmt.Printf("opened database %q (version %d)\n", schema.Name, schema.Version)
			return nil
		},
	}
	closeCmd = &cobra.Command{
		Use:   "close [database]",
		Short: "Closes a database on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Close(args[0]); err != nil {
				return err
			}
			fmt.Println("closed successfully")
			return nil
		},
	}
	destroyCmd = &cobra.Command{
		Use:   "destroy [database]",
		Short: "Deletes a database and all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.DeleteDatabase(args[0]); err != nil {
				return err
			}
			fmt.Println("destroyed successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [database] [collection] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[2])
			if err != nil {
				return err
			}
			if value, found, err := rpcClient.Get(args[0], args[1], k); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, value=%s\n", k, found, value)
			}
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [database] [collection] [range?]",
		Short: "Counts the records in a range (whole collection if omitted)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(args, 2)
			if err != nil {
				return err
			}
			if count, err := rpcClient.Count(args[0], args[1], r); err != nil {
				return err
			} else {
				fmt.Printf("count=%d\n", count)
			}
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [database] [collection] [range?]",
		Short: "Lists the keys in a range (whole collection if omitted)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(args, 2)
			if err != nil {
				return err
			}
			keys, err := rpcClient.GetAllKeys(args[0], args[1], r)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
	recordsCmd = &cobra.Command{
		Use:   "records [database] [collection] [range?]",
		Short: "Lists the records in a range (whole collection if omitted)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(args, 2)
			if err != nil {
				return err
			}
			records, err := rpcClient.GetAllRecords(args[0], args[1], r)
			if err != nil {
				return err
			}
			printRecords(records)
			return nil
		},
	}
	putAtCmd = &cobra.Command{
		Use:   "put-at [database] [collection] [key] [value]",
		Short: "Upserts a value under an explicit key",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[2])
			if err != nil {
				return err
			}
			if err := rpcClient.PutAt(args[0], args[1], k, []byte(args[3])); err != nil {
				return err
			}
			fmt.Println("put-at successfully")
			return nil
		},
	}
	addAtCmd = &cobra.Command{
		Use:   "add-at [database] [collection] [key] [value]",
		Short: "Inserts a value under an explicit key, fails if the key exists",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[2])
			if err != nil {
				return err
			}
			if err := rpcClient.AddAt(args[0], args[1], k, []byte(args[3])); err != nil {
				return err
			}
			fmt.Println("add-at successfully")
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [database] [collection] [value]",
		Short: "Upserts a value, key is extracted from the value via the key path",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := rpcClient.Put(args[0], args[1], []byte(args[2]))
			if err != nil {
				return err
			}
			fmt.Printf("put successfully, key=%s\n", k)
			return nil
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [database] [collection] [value]",
		Short: "Inserts a value with an extracted key, fails if the key exists",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := rpcClient.Add(args[0], args[1], []byte(args[2]))
			if err != nil {
				return err
			}
			fmt.Printf("add successfully, key=%s\n", k)
			return nil
		},
	}
	insertCmd = &cobra.Command{
		Use:   "insert [database] [collection] [value]",
		Short: "Stores a value under a freshly generated key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := rpcClient.Insert(args[0], args[1], []byte(args[2]))
			if err != nil {
				return err
			}
			fmt.Printf("insert successfully, key=%s\n", k)
			return nil
		},
	}
	replaceCmd = &cobra.Command{
		Use:   "replace [database] [collection] [key] [value]",
		Short: "Upserts a value under a previously generated key",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[2])
			if err != nil {
				return err
			}
			if err := rpcClient.Replace(args[0], args[1], k, []byte(args[3])); err != nil {
				return err
			}
			fmt.Println("replace successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [database] [collection] [key]",
		Short: "Deletes the record stored under a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[2])
			if err != nil {
				return err
			}
			if err := rpcClient.Delete(args[0], args[1], k); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	delRangeCmd = &cobra.Command{
		Use:   "del-range [database] [collection] [range]",
		Short: "Deletes every record in a range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(args, 2)
			if err != nil {
				return err
			}
			if err := rpcClient.DeleteMany(args[0], args[1], r); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear [database] [collection]",
		Short: "Deletes every record of a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Clear(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
	indexRecordsCmd = &cobra.Command{
		Use:   "index-records [database] [collection] [index] [range?]",
		Short: "Lists the records matched by an index range",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(args, 3)
			if err != nil {
				return err
			}
			records, err := rpcClient.GetByIndex(args[0], args[1], args[2], r)
			if err != nil {
				return err
			}
			printRecords(records)
			return nil
		},
	}
	indexKeysCmd = &cobra.Command{
		Use:   "index-keys [database] [collection] [index] [range?]",
		Short: "Lists the primary keys matched by an index range",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(args, 3)
			if err != nil {
				return err
			}
			keys, err := rpcClient.GetKeysByIndex(args[0], args[1], args[2], r)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
	indexCountCmd = &cobra.Command{
		Use:   "index-count [database] [collection] [index] [range?]",
		Short: "Counts the index entries in a range",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(args, 3)
			if err != nil {
				return err
			}
			if count, err := rpcClient.CountByIndex(args[0], args[1], args[2], r); err != nil {
				return err
			} else {
				fmt.Printf("count=%d\n", count)
			}
			return nil
		},
	}
)

// parseKey parses a key from its tagged JSON wire form
func parseKey(arg string) (key.Key, error) {
	k, err := key.DecodeJSON([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("invalid key %q: %w", arg, err)
	}
	return k, nil
}

// parseRange parses the optional range argument at idx, defaulting to the
// whole collection
func parseRange(args []string, idx int) (key.Range, error) {
	if len(args) <= idx {
		return key.Range{}, nil
	}
	r, err := key.DecodeRangeJSON([]byte(args[idx]))
	if err != nil {
		return key.Range{}, fmt.Errorf("invalid range %q: %w", args[idx], err)
	}
	return r, nil
}

func printRecords(records []odb.Record) {
	for _, rec := range records {
		fmt.Printf("key=%s, value=%s\n", rec.Key, rec.Value)
	}
}
