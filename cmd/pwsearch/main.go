// pwsearch is a demonstration workload: a brute-force password search
// coordinated entirely through a tuple space. The master posts search
// ranges as task tuples, workers take tasks and hash candidates, the
// finder posts a result tuple, and the master reads it and announces
// completion with a sentinel tuple that tells the workers to exit.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"tuplespace/internal/transport/rpc"
	"tuplespace/internal/tuple"
)

const (
	atomTask  = "search_task"
	atomFound = "found_password"
	atomDone  = "search_done"
)

var (
	nodeAddr  string
	spaceName string

	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

func main() {
	root := &cobra.Command{
		Use:           "pwsearch",
		Short:         "Distributed password search over a tuple space",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&nodeAddr, "addr", "localhost:7401", "node client address")
	root.PersistentFlags().StringVar(&spaceName, "space", "pwd_space", "space to coordinate through")

	root.AddCommand(masterCmd(), workerCmd(), hashCmd())

	if err := root.Execute(); err != nil {
		red.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dialSpace() (*grpc.ClientConn, rpc.SpaceServiceClient, error) {
	conn, err := grpc.NewClient(nodeAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", nodeAddr, err)
	}
	return conn, rpc.NewSpaceServiceClient(conn), nil
}

func out(ctx context.Context, client rpc.SpaceServiceClient, t tuple.Tuple) error {
	resp, err := client.Out(ctx, &rpc.OutRequest{Space: spaceName, Tuple: t})
	if err != nil {
		return err
	}
	if !resp.OK {
		return resp.Error
	}
	return nil
}

func masterCmd() *cobra.Command {
	var (
		target string
		max    uint64
		chunk  uint64
	)

	cmd := &cobra.Command{
		Use:   "master",
		Short: "Post search tasks, wait for the result, announce completion",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := hex.DecodeString(target); err != nil || len(target) != sha256.Size*2 {
				return fmt.Errorf("--target must be a %d-character hex sha256 digest", sha256.Size*2)
			}

			conn, client, err := dialSpace()
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := context.Background()

			posted := 0
			for lo := uint64(0); lo < max; lo += chunk {
				hi := lo + chunk
				if hi > max {
					hi = max
				}
				task := tuple.New(
					tuple.Atom(atomTask),
					tuple.String(target),
					tuple.String(strconv.FormatUint(lo, 10)),
					tuple.String(strconv.FormatUint(hi, 10)),
				)
				if err := out(ctx, client, task); err != nil {
					return fmt.Errorf("post task: %w", err)
				}
				posted++
			}
			fmt.Printf("posted %d tasks covering [0, %d)\n", posted, max)

			// Read, not take: late workers may also want to see the result.
			resp, err := client.Rd(ctx, &rpc.MatchRequest{
				Space:   spaceName,
				Pattern: tuple.NewPattern(tuple.LitAtom(atomFound), tuple.Any()),
			})
			if err != nil {
				return fmt.Errorf("wait for result: %w", err)
			}
			if resp.Error != nil {
				return resp.Error
			}

			// The founding master owns the completion sentinel.
			if err := out(ctx, client, tuple.New(tuple.Atom(atomDone))); err != nil {
				return fmt.Errorf("post completion sentinel: %w", err)
			}

			green.Printf("password found: %s\n", resp.Tuple[1].Str)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "hex sha256 digest to search for")
	cmd.Flags().Uint64Var(&max, "max", 1_000_000, "exclusive upper bound of the candidate range")
	cmd.Flags().Uint64Var(&chunk, "chunk", 10_000, "candidates per task")
	cmd.MarkFlagRequired("target")

	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Take search tasks and hash candidates until the search ends",
		RunE: func(_ *cobra.Command, _ []string) error {
			conn, client, err := dialSpace()
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := context.Background()
			taskPattern := tuple.NewPattern(tuple.LitAtom(atomTask), tuple.Any(), tuple.Any(), tuple.Any())

			for {
				takeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				resp, err := client.In(takeCtx, &rpc.MatchRequest{Space: spaceName, Pattern: taskPattern})
				cancel()

				if err != nil {
					if !isTimeout(err) {
						return fmt.Errorf("take task: %w", err)
					}
					// No task right now. Done, or just an empty bag?
					done, err := searchDone(ctx, client)
					if err != nil {
						return err
					}
					if done {
						fmt.Println("search complete, exiting")
						return nil
					}
					continue
				}
				if resp.Error != nil {
					return resp.Error
				}

				if err := runTask(ctx, client, resp.Tuple); err != nil {
					return err
				}
			}
		},
	}
}

func runTask(ctx context.Context, client rpc.SpaceServiceClient, task tuple.Tuple) error {
	target := task[1].Str
	lo, err := strconv.ParseUint(task[2].Str, 10, 64)
	if err != nil {
		return fmt.Errorf("bad task bound %q: %w", task[2].Str, err)
	}
	hi, err := strconv.ParseUint(task[3].Str, 10, 64)
	if err != nil {
		return fmt.Errorf("bad task bound %q: %w", task[3].Str, err)
	}

	fmt.Printf("searching [%d, %d)\n", lo, hi)

	for i := lo; i < hi; i++ {
		candidate := strconv.FormatUint(i, 10)
		sum := sha256.Sum256([]byte(candidate))
		if hex.EncodeToString(sum[:]) == target {
			green.Printf("found: %s\n", candidate)
			found := tuple.New(tuple.Atom(atomFound), tuple.String(candidate))
			return out(ctx, client, found)
		}
	}
	return nil
}

func searchDone(ctx context.Context, client rpc.SpaceServiceClient) (bool, error) {
	rdCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	resp, err := client.Rd(rdCtx, &rpc.MatchRequest{
		Space:   spaceName,
		Pattern: tuple.NewPattern(tuple.LitAtom(atomDone)),
	})
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		return false, err
	}
	return resp.Error == nil, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// gRPC surfaces the deadline as a status error.
	return status.Code(err) == codes.DeadlineExceeded
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <candidate>",
		Short: "Print the sha256 digest of a candidate, for building targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sum := sha256.Sum256([]byte(args[0]))
			fmt.Println(hex.EncodeToString(sum[:]))
			return nil
		},
	}
}
