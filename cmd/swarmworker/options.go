package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"swarmguard/internal/redisq"
	"swarmguard/internal/worker"
	"swarmguard/pkg/ratelimiter"
)

// options are the swarmworker command-line settings.
type options struct {
	Role      string
	Swarm     string
	In        string
	Out       string
	Broker    string
	RedisAddr string
	KeyPrefix string
	MongoURI  string
	MongoDB   string
	Mode      string
	Rate      float64
	SineMin   float64
	SineMax   float64
	Period    time.Duration
	Tick      time.Duration
	LogLevel  string
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var o options
	flags := flag.NewFlagSet("swarmworker", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&o.Role, "role", "", "Role to run (generator|moderator|processor)")
	flags.StringVar(&o.Swarm, "swarm", "", "Swarm identifier")
	flags.StringVar(&o.In, "in", "", "Input queue (moderator, processor)")
	flags.StringVar(&o.Out, "out", "", "Output queue (generator, moderator)")
	flags.StringVar(&o.Broker, "broker", "redis", "Queue broker (redis|mongo)")
	flags.StringVar(&o.RedisAddr, "redis", "localhost:6379", "Redis address for queues and rate updates")
	flags.StringVar(&o.KeyPrefix, "prefix", redisq.DefaultKeyPrefix, "Redis key and channel prefix")
	flags.StringVar(&o.MongoURI, "mongo-uri", "", "MongoDB URI when broker is mongo")
	flags.StringVar(&o.MongoDB, "mongo-db", "swarmguard", "MongoDB database when broker is mongo")
	flags.StringVar(&o.Mode, "mode", "constant", "Initial pacing mode (constant|sine|pass-through)")
	flags.Float64Var(&o.Rate, "rate", 10, "Initial rate in messages per second")
	flags.Float64Var(&o.SineMin, "sine-min", 0, "Sine mode minimum rate")
	flags.Float64Var(&o.SineMax, "sine-max", 0, "Sine mode maximum rate")
	flags.DurationVar(&o.Period, "sine-period", ratelimiter.DefaultSinePeriod, "Sine mode period")
	flags.DurationVar(&o.Tick, "tick", ratelimiter.DefaultTick, "Generator planning tick")
	flags.StringVar(&o.LogLevel, "log-level", "info", "Log level")
	if err := flags.Parse(args); err != nil {
		return o, err
	}
	if flags.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	return o, o.validate()
}

func (o options) validate() error {
	var errs []error
	if strings.TrimSpace(o.Swarm) == "" {
		errs = append(errs, errors.New("--swarm is required"))
	}
	switch o.Role {
	case worker.RoleGenerator:
		if o.Out == "" {
			errs = append(errs, errors.New("generator needs --out"))
		}
	case worker.RoleModerator:
		if o.In == "" || o.Out == "" {
			errs = append(errs, errors.New("moderator needs --in and --out"))
		}
	case worker.RoleProcessor:
		if o.In == "" {
			errs = append(errs, errors.New("processor needs --in"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown role %q", o.Role))
	}
	switch o.Broker {
	case "redis":
	case "mongo":
		if o.MongoURI == "" {
			errs = append(errs, errors.New("--mongo-uri is required when broker is mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown broker %q", o.Broker))
	}
	if o.Tick <= 0 {
		errs = append(errs, errors.New("--tick must be positive"))
	}
	if _, err := o.initialMode(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initialMode builds the limiter mode the worker starts in.
func (o options) initialMode() (ratelimiter.Mode, error) {
	switch o.Mode {
	case "constant":
		return ratelimiter.NewConstant(o.Rate), nil
	case "sine":
		return ratelimiter.NewSine(o.SineMin, o.SineMax, o.Period, 0), nil
	case "pass-through":
		return ratelimiter.PassThrough{}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", o.Mode)
	}
}

// queues returns the queues the role touches.
func (o options) queues() []string {
	var out []string
	for _, q := range []string{o.In, o.Out} {
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}
