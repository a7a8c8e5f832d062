package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const (
	datafileIDPrefix = "df-"
	replicaIDPrefix  = "rp-"
)

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(message)
		}
		return nil
	}
}

// requireIDs accepts one or more ids carrying prefix, so a datafile id
// passed where a replica id is expected fails before any request is made.
func requireIDs(kind, prefix string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%s id is required", kind)
		}
		for _, arg := range args {
			if !strings.HasPrefix(arg, prefix) {
				return fmt.Errorf("%q is not a %s id (expected %s...)", arg, kind, prefix)
			}
		}
		return nil
	}
}

var (
	requireDatafileIDs = requireIDs("datafile", datafileIDPrefix)
	requireReplicaIDs  = requireIDs("replica", replicaIDPrefix)
)

// requireOptionalReplicaIDs is requireReplicaIDs for commands that also
// accept no ids.
func requireOptionalReplicaIDs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return requireReplicaIDs(cmd, args)
}

// firstArg applies v to the leading argument only.
func firstArg(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return v(cmd, args)
		}
		return v(cmd, args[:1])
	}
}
