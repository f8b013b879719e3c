package sta

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/netlist"
)

const number = `[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`

var (
	// "wns -0.12", "wns max -0.12", "worst slack 0.30"
	wnsPattern = regexp.MustCompile(`(?i)(?:\bwns|worst slack)\s+(?:[a-z_]+\s+)?(` + number + `)`)
	tnsPattern = regexp.MustCompile(`(?i)(?:\btns|total negative slack)\s+(?:[a-z_]+\s+)?(` + number + `)`)

	// "  0.01   0.02   0.11 v _121_/ZN (INV_X1)"
	pinLine = regexp.MustCompile(`^\s*((?:` + number + `\s+)+)[\^v]\s+(\S+)/([^/\s]+)\s+\(([^)]+)\)\s*$`)
	// "     2    0.00          n1 (net)"
	netLine   = regexp.MustCompile(`^\s*(\d+)\s+(?:` + number + `\s+)?\S+\s+\(net\)\s*$`)
	slackLine = regexp.MustCompile(`^\s*(` + number + `)\s+slack\b`)
)

// ParseWNS extracts the worst negative slack from a report_wns output.
func ParseWNS(text string) (float64, error) {
	return parseMetric(wnsPattern, "WNS", text)
}

// ParseTNS extracts the total negative slack from a report_tns output.
func ParseTNS(text string) (float64, error) {
	return parseMetric(tnsPattern, "TNS", text)
}

func parseMetric(re *regexp.Regexp, name, text string) (float64, error) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("no %s value in report", name)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", name, m[1], err)
	}
	return v, nil
}

type gateTiming struct {
	delay, slew, slack float64
	hasSlack           bool
	inputs             map[string]bool
	fanout             int
	endpoint           bool
}

type pinRef struct {
	name, pin string
}

// ParseDetailed reads a full_clock_expanded report_checks output and returns
// per-instance timing for the instances present in nl. It returns nil when the
// report contains no complete path.
//
// Slack is the worst slack of the paths through an instance. Delay and slew are
// maxima over its pins. Fanin counts the distinct input pins seen on paths and
// fanout comes from the net line following the instance's output pin.
func ParseDetailed(r io.Reader, nl *netlist.Netlist, classifier sizing.CellClassifier) (map[string]sizing.TimingSample, error) {
	gates := make(map[string]*gateTiming)
	get := func(name string) *gateTiming {
		g, ok := gates[name]
		if !ok {
			g = &gateTiming{inputs: make(map[string]bool)}
			gates[name] = g
		}
		return g
	}

	var (
		onPath    map[string]bool
		endpoints []string
		arrival   bool
		last      pinRef
		complete  bool
	)
	reset := func() {
		onPath = make(map[string]bool)
		endpoints = nil
		arrival = false
		last = pinRef{}
	}
	reset()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Startpoint:"):
			reset()
			arrival = true
			endpoints = append(endpoints, firstField(strings.TrimPrefix(trimmed, "Startpoint:")))
			continue
		case strings.HasPrefix(trimmed, "Endpoint:"):
			endpoints = append(endpoints, firstField(strings.TrimPrefix(trimmed, "Endpoint:")))
			continue
		case strings.Contains(trimmed, "data arrival time"):
			arrival = false
			continue
		}

		if m := slackLine.FindStringSubmatch(line); m != nil {
			slack, err := strconv.ParseFloat(m[1], 64)
			if err != nil || len(onPath) == 0 {
				continue
			}
			for name := range onPath {
				g := get(name)
				if !g.hasSlack || slack < g.slack {
					g.slack, g.hasSlack = slack, true
				}
			}
			for _, name := range endpoints {
				if g, ok := gates[name]; ok {
					g.endpoint = true
				}
			}
			complete = true
			reset()
			continue
		}
		if !arrival {
			continue
		}

		if m := netLine.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && last.name != "" {
				g := get(last.name)
				g.fanout = max(g.fanout, n)
			}
			continue
		}
		m := pinLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, pin := m[2], m[3]
		if _, ok := nl.Instance(name); !ok {
			last = pinRef{}
			continue
		}
		g := get(name)
		nums := strings.Fields(m[1])
		if len(nums) >= 3 {
			if slew, err := strconv.ParseFloat(nums[len(nums)-3], 64); err == nil {
				g.slew = max(g.slew, slew)
			}
		}
		if len(nums) >= 2 {
			if delay, err := strconv.ParseFloat(nums[len(nums)-2], 64); err == nil {
				g.delay = max(g.delay, delay)
			}
		}
		if last.name == name {
			g.inputs[last.pin] = true
		}
		last = pinRef{name: name, pin: pin}
		onPath[name] = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading timing report: %w", err)
	}
	if !complete {
		return nil, nil
	}

	samples := make(map[string]sizing.TimingSample, len(gates))
	for name, g := range gates {
		if !g.hasSlack {
			continue
		}
		inst, _ := nl.Instance(name)
		samples[name] = sizing.TimingSample{
			Delay:  g.delay,
			Slew:   g.slew,
			Slack:  g.slack,
			Fanin:  len(g.inputs),
			Fanout: g.fanout,
			Role:   classifier.Role(inst.Family, g.endpoint),
		}
	}
	return samples, nil
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
