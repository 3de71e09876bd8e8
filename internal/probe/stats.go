package probe

import (
	"math"
	"time"

	"github.com/tkjaer/gtping/internal/shared"
)

// rttSummary holds min/avg/max/mdev over a set of RTT samples in ms
type rttSummary struct {
	samples int
	min     float64
	max     float64
	avg     float64
	mdev    float64
}

// summarizeRTTs aggregates the strictly positive values of rtts. Empty
// slots and slots without a response are 0 and are skipped. With no samples
// all fields are 0.
func summarizeRTTs(rtts []float64) rttSummary {
	var sum rttSummary
	var total float64
	for _, rtt := range rtts {
		if rtt <= 0 {
			continue
		}
		if sum.samples == 0 || rtt < sum.min {
			sum.min = rtt
		}
		if rtt > sum.max {
			sum.max = rtt
		}
		total += rtt
		sum.samples++
	}
	if sum.samples == 0 {
		return sum
	}
	sum.avg = total / float64(sum.samples)

	// Population variance, divided by n
	var variance float64
	for _, rtt := range rtts {
		if rtt <= 0 {
			continue
		}
		variance += (rtt - sum.avg) * (rtt - sum.avg)
	}
	sum.mdev = math.Sqrt(variance / float64(sum.samples))
	return sum
}

// calculateLossPct returns the percentage of sent probes without a response
func calculateLossPct(sent, received uint64) float64 {
	if sent == 0 || received >= sent {
		return 0
	}
	return float64(sent-received) / float64(sent) * 100
}

// Stats builds the summary record of the session. Only DurationMs depends on
// when it is called.
func (s *Session) Stats() shared.Stats {
	rtt := summarizeRTTs(s.rtts[:])
	return shared.Stats{
		Target:     s.Target(),
		Source:     s.conn.LocalAddr().String(),
		EpochMs:    s.start.UnixMilli(),
		DurationMs: float64(s.now().Sub(s.start)) / float64(time.Millisecond),
		Sent:       s.sent,
		Received:   s.received,
		Duplicates: s.duplicates,
		Refused:    s.refused,
		TimedOut:   s.timedOut,
		LossPct:    calculateLossPct(s.sent, s.received),
		Samples:    rtt.samples,
		Min:        rtt.min,
		Avg:        rtt.avg,
		Max:        rtt.max,
		Mdev:       rtt.mdev,
	}
}
