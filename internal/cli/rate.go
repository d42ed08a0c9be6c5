package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"swarmguard/internal/redisq"
)

// rateTimeout bounds the publish round trip.
const rateTimeout = 5 * time.Second

func runRate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		addr := flags.String("redis", "localhost:6379", "Redis address")
		prefix := flags.String("prefix", redisq.DefaultKeyPrefix, "Channel prefix")
		swarm := flags.String("swarm", "", "Swarm identifier")
		role := flags.String("role", "", "Target role")
		rate := flags.Float64("rate", -1, "Rate in messages per second")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if strings.TrimSpace(*swarm) == "" || strings.TrimSpace(*role) == "" {
			fmt.Fprintln(stderr, "--swarm and --role are required")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if *rate < 0 || math.IsNaN(*rate) || math.IsInf(*rate, 0) {
			fmt.Fprintln(stderr, "--rate must be a finite non-negative number")
			return ExitUsage
		}

		rdb := redis.NewClient(&redis.Options{Addr: *addr})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), rateTimeout)
		defer cancel()
		pub := redisq.NewPublisher(rdb, *swarm, redisq.WithKeyPrefix(*prefix))
		if err := pub.Publish(ctx, *role, *rate); err != nil {
			fmt.Fprintf(stderr, "Rate failed: %v\n", err)
			return ExitError
		}
		fmt.Fprintf(stdout, "Published %s/s to %s\n", formatFloat(*rate), redisq.Channel(*prefix, *swarm, *role))
		return ExitOK
	}
}
