package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Validate checks the cross-field rules the schema cannot express.
func Validate(doc Document) error {
	var c issueCollector

	if doc.Version == 0 {
		c.add("version", "is required")
	} else if doc.Version != SupportedVersion {
		c.add("version", fmt.Sprintf("unsupported version %d", doc.Version))
	}
	if strings.TrimSpace(doc.Swarm) == "" {
		c.add("swarm", "is required")
	}
	if doc.Defaults.SamplePeriod < 0 {
		c.add("defaults.sample_period", "must be >= 0")
	}

	names := map[string]string{}
	for _, alias := range aliases(doc) {
		q := doc.Queues[alias]
		field := "queues." + alias
		if strings.TrimSpace(alias) == "" {
			c.add("queues", "alias must not be empty")
			continue
		}
		if strings.TrimSpace(q.Producer) == "" {
			c.add(field+".producer", "is required")
		}
		name := physicalName(doc, alias, q)
		if other, exists := names[name]; exists {
			c.add(field+".name", fmt.Sprintf("physical queue %q already used by %q", name, other))
		} else {
			names[name] = alias
		}
		if q.SamplePeriod < 0 {
			c.add(field+".sample_period", "must be >= 0")
		}
		if q.Prefill != nil {
			validatePrefill(&c, field+".prefill", *q.Prefill)
		}
		if q.Backpressure != nil {
			validateBackpressure(&c, doc, alias, field+".backpressure", *q.Backpressure)
		}
	}
	return c.result()
}

func validatePrefill(c *issueCollector, field string, p Prefill) {
	if p.Enabled && p.Lookahead <= 0 {
		c.add(field+".lookahead", "must be > 0 when prefill is enabled")
	}
	if p.AnticipateAt != "" {
		if _, err := time.Parse(time.RFC3339, p.AnticipateAt); err != nil {
			c.add(field+".anticipate_at", "must be an RFC 3339 timestamp")
		}
	}
}

func validateBackpressure(c *issueCollector, doc Document, alias, field string, b Backpressure) {
	downstream := strings.TrimSpace(b.Downstream)
	switch {
	case downstream == "":
		c.add(field+".downstream", "is required")
	case downstream == alias:
		c.add(field+".downstream", "must name a different queue")
	default:
		if _, ok := doc.Queues[downstream]; !ok {
			c.add(field+".downstream", fmt.Sprintf("unknown queue alias %q", downstream))
		}
	}
	if b.HighDepth <= 0 {
		c.add(field+".high_depth", "must be > 0")
	}
}

// aliases returns the queue aliases in sorted order.
func aliases(doc Document) []string {
	out := make([]string, 0, len(doc.Queues))
	for alias := range doc.Queues {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// physicalName returns the broker name of a queue alias.
func physicalName(doc Document, alias string, q Queue) string {
	if name := strings.TrimSpace(q.Name); name != "" {
		return name
	}
	prefix := strings.TrimSpace(doc.QueuePrefix)
	if prefix == "" {
		prefix = DefaultQueuePrefix
	}
	return prefix + "." + strings.TrimSpace(doc.Swarm) + "." + strings.TrimSpace(alias)
}
