package decision

import (
	"math"
	"sync"
)

// DecisionHistory tracks recent decisions
type DecisionHistory struct {
	decisions []Decision
	maxSize   int
	mu        sync.RWMutex
}

// NewDecisionHistory creates a new decision history tracker
func NewDecisionHistory(maxSize int) *DecisionHistory {
	return &DecisionHistory{
		decisions: make([]Decision, 0, maxSize),
		maxSize:   maxSize,
	}
}

// Add adds a decision to history
func (dh *DecisionHistory) Add(decision *Decision) {
	dh.mu.Lock()
	defer dh.mu.Unlock()

	dh.decisions = append(dh.decisions, *decision)
	if len(dh.decisions) > dh.maxSize {
		dh.decisions = dh.decisions[1:]
	}
}

// GetRecent returns N most recent decisions
func (dh *DecisionHistory) GetRecent(n int) []Decision {
	dh.mu.RLock()
	defer dh.mu.RUnlock()

	if n > len(dh.decisions) {
		n = len(dh.decisions)
	}

	start := len(dh.decisions) - n
	recent := make([]Decision, n)
	copy(recent, dh.decisions[start:])
	return recent
}

// GetStats returns statistics about decision history
func (dh *DecisionHistory) GetStats() HistoryStats {
	dh.mu.RLock()
	defer dh.mu.RUnlock()

	if len(dh.decisions) == 0 {
		return HistoryStats{}
	}

	var (
		totalDepth   int
		totalMs      float64
		totalNodes   int64
		finiteScores int
		totalScore   float64
	)
	stats := HistoryStats{TotalDecisions: len(dh.decisions)}

	for _, d := range dh.decisions {
		totalDepth += d.Depth
		totalMs += d.Elapsed.Seconds() * 1000
		totalNodes += d.Nodes
		if d.TieBreak {
			stats.TieBreaks++
		}
		if math.IsInf(d.Score, 0) {
			stats.Mates++
			continue
		}
		finiteScores++
		totalScore += d.Score
	}

	n := float64(len(dh.decisions))
	stats.AvgDepth = float64(totalDepth) / n
	stats.AvgElapsedMs = totalMs / n
	stats.AvgNodes = float64(totalNodes) / n
	if finiteScores > 0 {
		stats.AvgScore = totalScore / float64(finiteScores)
	}

	return stats
}

// HistoryStats represents statistics about decision history
type HistoryStats struct {
	TotalDecisions int
	Mates          int
	TieBreaks      int
	AvgDepth       float64
	AvgScore       float64 // over non-mate decisions
	AvgElapsedMs   float64
	AvgNodes       float64
}
