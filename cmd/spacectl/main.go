// spacectl is the operator CLI for a tuplespace node: space lifecycle,
// membership, and ad-hoc out/in/rd operations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"tuplespace/internal/command"
	"tuplespace/internal/transport/rpc"
)

var (
	nodeAddr string
	timeout  time.Duration

	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

func main() {
	root := &cobra.Command{
		Use:           "spacectl",
		Short:         "Control a tuplespace node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&nodeAddr, "addr", "localhost:7401", "node client address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "operation timeout (blocking in/rd wait this long for a match)")

	root.AddCommand(
		createCmd(),
		newCmd(),
		dropCmd(),
		joinCmd(),
		leaveCmd(),
		nodesCmd(),
		outCmd(),
		inCmd(),
		rdCmd(),
	)

	if err := root.Execute(); err != nil {
		red.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dial() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(nodeAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", nodeAddr, err)
	}
	return conn, nil
}

func withClients(fn func(ctx context.Context, space rpc.SpaceServiceClient, admin rpc.AdminServiceClient) error) error {
	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return fn(ctx, rpc.NewSpaceServiceClient(conn), rpc.NewAdminServiceClient(conn))
}

func createCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "create <space>",
		Short: "Found a new space with this node as its first member",
		Long:  "Founds a fresh single-member cluster hosting the named space. Refuses on a node that is already part of a space unless --force is given, since founding wipes all replicated state. To add a space to a running cluster, use new.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClients(func(ctx context.Context, _ rpc.SpaceServiceClient, admin rpc.AdminServiceClient) error {
				resp, err := admin.Create(ctx, &rpc.CreateRequest{Space: args[0], Force: force})
				if err != nil {
					return err
				}
				if !resp.OK {
					return fmt.Errorf("create failed: %s", resp.Message)
				}
				green.Printf("space %q created\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "wipe this node's replicated state even if it already participates in a space")
	return cmd
}

func newCmd() *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "new <space>",
		Short: "Register an additional space on the running cluster",
		Long:  "Registers a named space in place through the replicated log, leaving existing spaces untouched. Fails if the name is taken unless --recreate is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClients(func(ctx context.Context, space rpc.SpaceServiceClient, _ rpc.AdminServiceClient) error {
				resp, err := space.ProcessCommand(ctx, &command.Request{
					Type:     command.OpCreateSpace,
					Space:    args[0],
					Recreate: recreate,
				})
				if err != nil {
					return err
				}
				if !resp.Success {
					return resp.Error
				}
				green.Printf("space %q registered\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&recreate, "recreate", false, "replace the space if it already exists")
	return cmd
}

func dropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <space>",
		Short: "Destroy a space and every tuple in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClients(func(ctx context.Context, space rpc.SpaceServiceClient, _ rpc.AdminServiceClient) error {
				resp, err := space.ProcessCommand(ctx, &command.Request{
					Type:  command.OpDropSpace,
					Space: args[0],
				})
				if err != nil {
					return err
				}
				if !resp.Success {
					return resp.Error
				}
				green.Printf("space %q dropped\n", args[0])
				return nil
			})
		},
	}
}

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <peer-raft-addr>",
		Short: "Join the space cluster behind an existing member",
		Long:  "Wipes this node's local state and admits it into the cluster reachable at the given peer raft address. Space contents arrive via snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClients(func(ctx context.Context, _ rpc.SpaceServiceClient, admin rpc.AdminServiceClient) error {
				resp, err := admin.Join(ctx, &rpc.JoinClusterRequest{PeerAddr: args[0]})
				if err != nil {
					return err
				}
				if !resp.OK {
					return fmt.Errorf("join failed: %s", resp.Message)
				}
				green.Printf("joined cluster via %s\n", args[0])
				return nil
			})
		},
	}
}

func leaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Withdraw this node from its space and wipe local state",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClients(func(ctx context.Context, _ rpc.SpaceServiceClient, admin rpc.AdminServiceClient) error {
				resp, err := admin.Leave(ctx, &rpc.LeaveClusterRequest{})
				if err != nil {
					return err
				}
				if !resp.OK {
					return fmt.Errorf("leave failed: %s", resp.Message)
				}
				green.Println("left the space")
				return nil
			})
		},
	}
}

func nodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the members of this node's space cluster",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClients(func(ctx context.Context, _ rpc.SpaceServiceClient, admin rpc.AdminServiceClient) error {
				resp, err := admin.Nodes(ctx, &rpc.ListNodesRequest{})
				if err != nil {
					return err
				}
				for _, n := range resp.Nodes {
					marker := " "
					if n.IsLeader {
						marker = "*"
					}
					line := fmt.Sprintf("%s %-4d raft=%-21s client=%s", marker, n.ID, n.RaftAddr, n.ClientAddr)
					if n.IsSelf {
						yellow.Println(line + "  (this node)")
					} else {
						fmt.Println(line)
					}
				}
				return nil
			})
		},
	}
}

func outCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "out <space> <field>...",
		Short: "Insert a tuple",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := parseTuple(args[1:])
			if err != nil {
				return err
			}
			return withClients(func(ctx context.Context, space rpc.SpaceServiceClient, _ rpc.AdminServiceClient) error {
				resp, err := space.Out(ctx, &rpc.OutRequest{Space: args[0], Tuple: t})
				if err != nil {
					return err
				}
				if !resp.OK {
					return resp.Error
				}
				green.Printf("out %s\n", t)
				return nil
			})
		},
	}
}

func inCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "in <space> <pattern-field>...",
		Short: "Take one matching tuple, blocking until a match exists",
		Args:  cobra.MinimumNArgs(2),
		RunE:  matchRunE(func(c rpc.SpaceServiceClient) matchFn { return c.In }),
	}
}

func rdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rd <space> <pattern-field>...",
		Short: "Read one matching tuple without removing it, blocking until a match exists",
		Args:  cobra.MinimumNArgs(2),
		RunE:  matchRunE(func(c rpc.SpaceServiceClient) matchFn { return c.Rd }),
	}
}

type matchFn func(ctx context.Context, in *rpc.MatchRequest, opts ...grpc.CallOption) (*rpc.TupleReply, error)

func matchRunE(pick func(rpc.SpaceServiceClient) matchFn) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		p, err := parsePattern(args[1:])
		if err != nil {
			return err
		}
		return withClients(func(ctx context.Context, space rpc.SpaceServiceClient, _ rpc.AdminServiceClient) error {
			resp, err := pick(space)(ctx, &rpc.MatchRequest{Space: args[0], Pattern: p})
			if err != nil {
				return err
			}
			if resp.Error != nil {
				return resp.Error
			}
			green.Println(resp.Tuple)
			return nil
		})
	}
}
